package handler

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"opusbot/internal/transcode"
)

func bitrateChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(transcode.Bitrates))
	for _, kbps := range transcode.Bitrates {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  strconv.Itoa(kbps) + " kbps",
			Value: kbps,
		})
	}
	return choices
}

var modeChoices = []*discordgo.ApplicationCommandOptionChoice{
	{Name: "voice (mono, speech-tuned)", Value: string(transcode.ModeVoice)},
	{Name: "music (keeps stereo)", Value: string(transcode.ModeMusic)},
}

var encodeOverrideOptions = []*discordgo.ApplicationCommandOption{
	{
		Name:        "bitrate",
		Type:        discordgo.ApplicationCommandOptionInteger,
		Description: "Target bitrate for this encode only.",
		Required:    false,
		Choices:     bitrateChoices(),
	},
	{
		Name:        "mode",
		Type:        discordgo.ApplicationCommandOptionString,
		Description: "Encoder tuning for this encode only.",
		Required:    false,
		Choices:     modeChoices,
	},
}

var encodeOptions = append([]*discordgo.ApplicationCommandOption{
	{
		Name:        "audio",
		Type:        discordgo.ApplicationCommandOptionAttachment,
		Description: "The audio or video file to convert to Opus.",
		Required:    true,
	},
}, encodeOverrideOptions...)

var linkOptions = append([]*discordgo.ApplicationCommandOption{
	{
		Name:        "url",
		Type:        discordgo.ApplicationCommandOptionString,
		Description: "A link to an audio file or a media page.",
		Required:    true,
	},
}, encodeOverrideOptions...)

// Commands is a list of all the commands the bot can handle.
// This is used to register the commands with Discord.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "opus",
		Description: "Convert audio to Opus",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "encode",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Convert an uploaded file to Opus.",
				Options:     encodeOptions,
			},
			{
				Name:        "link",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Fetch audio from a link and convert it to Opus.",
				Options:     linkOptions,
			},
			{
				Name:        "bitrate",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Set your default bitrate.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "kbps",
						Type:        discordgo.ApplicationCommandOptionInteger,
						Description: "The bitrate to use for future encodes.",
						Required:    true,
						Choices:     bitrateChoices(),
					},
				},
			},
			{
				Name:        "mode",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Set your default encoder mode.",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "mode",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "The mode to use for future encodes.",
						Required:    true,
						Choices:     modeChoices,
					},
				},
			},
			{
				Name:        "settings",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Show your current encoding settings.",
			},
		},
	},
}

// EstablishCommands registers the command tree. An empty guildID
// registers the commands globally.
func EstablishCommands(s *discordgo.Session, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, Commands)
	if err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}
	return nil
}
