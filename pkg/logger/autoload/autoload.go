// Package autoload initializes the global logger from the LOG-prefixed
// environment on import:
//
//	import _ "github.com/deuterium1925/smart-ass-back/pkg/logger/autoload"
package autoload

import (
	configx "github.com/deuterium1925/smart-ass-back/pkg/config"
	logx "github.com/deuterium1925/smart-ass-back/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
