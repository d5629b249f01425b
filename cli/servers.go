package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/hyqf98/trainhub/pkg/remote"
)

var serversCmd = []cobra.Command{
	{
		Use:   "list",
		Short: "List configured servers",
		Long:  ``,
		Run: func(cmd *cobra.Command, _ []string) {
			servers, err := managerClient.ListServers()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				logJSONCmd(*cmd, servers)

				return
			}

			for _, s := range servers {
				fmt.Fprintf(cmd.OutOrStdout(), "%4d  %-24s %s@%s:%d\n",
					s.ID, s.Name, s.Username, s.Host, s.Port)
			}
		},
	},
	{
		Use:   "add",
		Short: "Register a server interactively",
		Long:  ``,
		Run: func(cmd *cobra.Command, _ []string) {
			srv, err := serverForm()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			created, err := managerClient.CreateServer(srv)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd, "registered server %d (%s)", created.ID, created.Name)
		},
	},
	{
		Use:   "delete <server_id>",
		Short: "Remove a server configuration",
		Long:  ``,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				logErrorCmd(*cmd, fmt.Errorf("server id must be an integer"))

				return
			}

			if err := managerClient.DeleteServer(id); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd, "removed server %d", id)
		},
	},
}

func NewServersCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "servers",
		Short: "Remote server management",
		Long:  ``,
	}

	for i := range serversCmd {
		cmd.AddCommand(&serversCmd[i])
	}

	serversCmd[0].Flags().Bool("json", false, "Print servers as JSON")

	return &cmd
}

func serverForm() (remote.Server, error) {
	srv := remote.Server{Port: 22}
	port := "22"

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&srv.Name),
			huh.NewInput().
				Title("Host").
				Value(&srv.Host),
			huh.NewInput().
				Title("Port").
				Validate(func(s string) error {
					if _, err := strconv.Atoi(s); err != nil {
						return fmt.Errorf("must be an integer")
					}

					return nil
				}).
				Value(&port),
			huh.NewInput().
				Title("Username").
				Value(&srv.Username),
			huh.NewInput().
				Title("Password").
				Description("Leave empty when using a private key").
				EchoMode(huh.EchoModePassword).
				Value(&srv.Password),
			huh.NewInput().
				Title("Private key path").
				Value(&srv.PrivateKeyPath),
		),
	)

	if err := form.Run(); err != nil {
		return remote.Server{}, err
	}

	p, err := strconv.Atoi(port)
	if err != nil {
		return remote.Server{}, err
	}
	srv.Port = p

	return srv, nil
}
