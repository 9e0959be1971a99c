package cmd

import (
	"github.com/spf13/cobra"
)

var createFlags clientFlags

var createCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"c"},
	Short:   "Create a room and start sharing your pose",
	Long: `Create a new room on the session server, join it, and broadcast your pose
until you press Ctrl+C. Share the printed room id with the other participants.

Examples:
  posecast create
  posecast create --view --fps 30
  posecast create --server https://pose.example.com --transport relay
  posecast create --source file:dance.jsonl --snapshots ./out`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), createFlags.options(), "")
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createFlags.register(createCmd)
}
