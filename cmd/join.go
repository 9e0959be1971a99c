package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/posecast/internal/protocol"
	"github.com/BioHazard786/posecast/internal/ui"
)

var joinFlags clientFlags

var joinCmd = &cobra.Command{
	Use:     "join <room-id|url>",
	Aliases: []string{"j"},
	Short:   "Join an existing room",
	Long: `Join a room someone else created and exchange poses with everyone in it.

Examples:
  posecast join calm-tiger-red-jump
  posecast join https://pose.example.com/room/calm-tiger-red-jump
  posecast join calm-tiger-red-jump --view --codec msgpack`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return runSession(cmd.Context(), joinFlags.options(), roomID)
	},
}

func parseRoomInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("room ID cannot be empty")
	}

	if strings.Contains(input, "://") || strings.Contains(input, ".") {
		roomID, err := extractRoomIDFromURL(input)
		if err != nil {
			return "", err
		}
		ui.PrintSuccessf("Extracted room ID: %s", roomID)
		return roomID, nil
	}

	return input, nil
}

// extractRoomIDFromURL accepts .../room/<id>, .../r/<id> and ?room=<id>.
func extractRoomIDFromURL(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", protocol.NewError("parse URL", err)
	}

	if id := parsedURL.Query().Get("room"); id != "" {
		return id, nil
	}

	path := strings.TrimSuffix(parsedURL.Path, "/")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		if (part == "r" || part == "room") && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}

	return "", fmt.Errorf("could not extract room ID from URL: %s", urlStr)
}

func init() {
	rootCmd.AddCommand(joinCmd)
	joinFlags.register(joinCmd)
}
