// Package plugin registers the safedrop analyzer as a golangci-lint
// module plugin via github.com/golangci/plugin-module-register, the
// second real-world distribution path alongside the standalone
// cmd/safedrop binary: a project that already runs golangci-lint can
// load this analyzer without adding a second tool invocation to its CI.
package plugin

import (
	"golang.org/x/tools/go/analysis"

	"github.com/golangci/plugin-module-register/register"

	"github.com/go-safedrop/safedrop/analyzer"
)

func init() {
	register.Plugin("safedrop", newPlugin)
}

type pluginSettings struct {
	Debug bool `mapstructure:"debug"`
}

type safedropPlugin struct {
	settings pluginSettings
}

func newPlugin(settings any) (register.LinterPlugin, error) {
	s, err := register.DecodeSettings[pluginSettings](settings)
	if err != nil {
		return nil, err
	}
	return &safedropPlugin{settings: s}, nil
}

func (p *safedropPlugin) BuildAnalyzers() ([]*analysis.Analyzer, error) {
	if p.settings.Debug {
		if err := analyzer.Analyzer.Flags.Set("debug", "true"); err != nil {
			return nil, err
		}
	}
	return []*analysis.Analyzer{analyzer.Analyzer}, nil
}

func (p *safedropPlugin) GetLoadMode() string {
	return register.LoadModeTypesInfo
}
