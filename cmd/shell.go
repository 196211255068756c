// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/abiosoft/ishell"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/dmxsender/pkg/dmxcmd"
)

var shellCmd = &cobra.Command{
	Use:   "shell [COMMAND [ARGS...]]",
	Short: "Interactive command shell",
	Long: `Open an interactive shell on the transmitter.

Every command of "send" is available at the prompt. With arguments, the shell
runs that one command and exits.

Commands:
` + deviceCommandHelp(),
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// newShell builds an ishell with one command per device command.
func newShell(client *dmxcmd.Client, prompt string) *ishell.Shell {
	sh := ishell.New()
	sh.SetPrompt(prompt)
	for _, d := range deviceCommands {
		sh.AddCmd(&ishell.Cmd{
			Name:     d.name,
			Help:     d.help,
			LongHelp: d.Title() + "\n  " + d.help,
			Func: func(c *ishell.Context) {
				out, err := runDeviceCommand(client, append([]string{d.name}, c.Args...))
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(out)
			},
		})
	}
	return sh
}

func runShell(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	sh := newShell(dmxcmd.NewClient(conn), "dmx > ")
	if len(args) > 0 {
		return sh.Process(args...)
	}

	sh.Println("Connected: " + connInfo)
	sh.Run()
	return nil
}
