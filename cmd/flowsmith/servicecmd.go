package main

import (
	"fmt"

	"github.com/flowsmith/flowsmith/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage flowsmith as a system service",
	}

	var cfgPath string
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(serviceActionCmd(action, &cfgPath))
	}
	cmd.AddCommand(serviceStatusCmd(&cfgPath), serviceRunCmd(&cfgPath))
	return cmd
}

func serviceActionCmd(action string, cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s the system service", capitalize(action)),
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := newService(*cfgPath)
			if err != nil {
				return err
			}
			if err := service.Control(svc, action); err != nil {
				return err
			}
			fmt.Printf("Service %s: done\n", action)
			return nil
		},
	}
}

func serviceStatusCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the system service status",
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := newService(*cfgPath)
			if err != nil {
				return err
			}
			status, err := svc.Status()
			if err != nil {
				return err
			}
			switch status {
			case service.StatusRunning:
				fmt.Println("running")
			case service.StatusStopped:
				fmt.Println("stopped")
			default:
				fmt.Println("unknown")
			}
			return nil
		},
	}
}

// serviceRunCmd is the entry point the service manager invokes. It is
// registered so "install" can point the unit at a stable command line.
func serviceRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := newService(*cfgPath)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
}

func newService(cfgPath string) (service.Service, error) {
	args := []string{"service", "run"}
	if cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	return service.New(&program{cfgPath: cfgPath}, &service.Config{
		Name:        "flowsmith",
		DisplayName: "Flowsmith",
		Description: "Conversation context management for the workflow builder",
		Arguments:   args,
	})
}

// program adapts the application loop to service.Interface.
type program struct {
	cfgPath string
	errCh   chan error
}

func (p *program) Start(service.Service) error {
	p.errCh = make(chan error, 1)
	go func() {
		p.errCh <- app.Run(app.RunParams{
			ConfigPath: p.cfgPath,
			Version:    version,
			Commit:     commit,
			Date:       date,
		})
	}()
	return nil
}

// Stop waits for the application loop to drain. The service manager
// delivers SIGTERM before calling Stop, which unblocks app.Run.
func (p *program) Stop(service.Service) error {
	if p.errCh == nil {
		return nil
	}
	return <-p.errCh
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
