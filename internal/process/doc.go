// Package process spawns the supervised web server and takes it down again.
//
// A launch is parameterised by a Strategy:
//
//   - StrategyDirect: the child inherits our stdout and stderr.
//   - StrategyCaptured: the child's stdout and stderr are piped back and every
//     line is re-logged through the package Logger with a "stream" attribute.
//
// Every child is placed in its own process group so Terminate can signal the
// server together with any workers it forked.
//
// Example usage:
//
//	l := process.NewLauncher()
//	l.SetLogger(logger)
//
//	h, err := l.Launch(process.Command{
//	    Name:   "open-webui",
//	    Binary: "open-webui",
//	    Args:   []string{"serve", "--port", "8080"},
//	}, process.StrategyCaptured)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Terminate(process.DefaultTerminateOptions())
package process
