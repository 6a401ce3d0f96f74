package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kardianos/service"

	"crowdview/core"
	"crowdview/logging"
	"crowdview/shutdown"
)

const serviceStopTimeout = 30 * time.Second

// program adapts runViewer to the service manager's Start/Stop lifecycle.
type program struct {
	cfg    *core.Config
	logger *logging.Logger
	mgr    *shutdown.Manager
	exit   chan struct{}
	err    error
}

func (p *program) Start(s service.Service) error {
	p.mgr = shutdown.NewManager(p.logger.Zap())
	p.exit = make(chan struct{})
	go p.run()
	return nil
}

func (p *program) run() {
	defer close(p.exit)
	p.err = runViewer(p.cfg, p.logger, p.mgr)
}

func (p *program) Stop(s service.Service) error {
	p.mgr.Trigger()
	select {
	case <-p.exit:
		return p.err
	case <-time.After(serviceStopTimeout):
		return fmt.Errorf("timeout waiting for service to stop")
	}
}

func serviceConfig() *service.Config {
	return &service.Config{
		Name:        "crowdview",
		DisplayName: "crowdview Live Metrics Viewer",
		Description: "Live dashboard for the crowd-analytics video stream",
		Arguments:   []string{"run"},
		Option: service.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}
}

// runService hands control to the service manager until it stops us.
func runService(cfg *core.Config, logger *logging.Logger) error {
	s, err := service.New(&program{cfg: cfg, logger: logger}, serviceConfig())
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return s.Run()
}

// controlService runs one of the install/uninstall/start/stop/restart
// verbs against the system service manager.
func controlService(action string) int {
	s, err := service.New(&program{}, serviceConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create service: %v\n", err)
		return core.ExitCodeError
	}
	if err := service.Control(s, action); err != nil {
		fmt.Fprintf(os.Stderr, "service %s failed: %v\n", action, err)
		return core.ExitCodeError
	}
	fmt.Printf("service %s: ok\n", action)
	return core.ExitCodeSuccess
}
