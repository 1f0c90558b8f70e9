// Package delivery hands finished artifacts (or failure summaries)
// back to the chat a job came from.
package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bwmarrin/discordgo"

	"opusbot/internal/pipeline"
	"opusbot/internal/transcode"
)

// ChannelSender is the slice of discordgo.Session the deliverer needs.
type ChannelSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord delivers results as channel messages. The artifact file is
// read at delivery time, while the job still owns its scratch space.
type Discord struct {
	sender ChannelSender
}

func NewDiscord(sender ChannelSender) *Discord {
	return &Discord{sender: sender}
}

func (d *Discord) DeliverArtifact(ctx context.Context, chatID string, artifact *transcode.Artifact) error {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return fmt.Errorf("failed to open artifact for delivery: %w", err)
	}
	defer f.Close()

	_, err = d.sender.ChannelMessageSendComplex(chatID, &discordgo.MessageSend{
		Content: Caption(artifact),
		Files: []*discordgo.File{
			{
				Name:        filepath.Base(artifact.Path),
				ContentType: "audio/ogg",
				Reader:      f,
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send artifact message: %w", err)
	}
	return nil
}

func (d *Discord) DeliverFailure(ctx context.Context, chatID string, message string) error {
	_, err := d.sender.ChannelMessageSendComplex(chatID, &discordgo.MessageSend{
		Content: message,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send failure message: %w", err)
	}
	return nil
}

var _ pipeline.Deliverer = (*Discord)(nil)
