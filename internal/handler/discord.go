package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"opusbot/internal/pipeline"
	"opusbot/internal/repository"
	"opusbot/internal/source"
	"opusbot/internal/transcode"
	"opusbot/internal/util"
)

type ReadyHandler = func(*discordgo.Session, *discordgo.Ready)
type InteractionCreateHandler = func(*discordgo.Session, *discordgo.InteractionCreate)

var ReadyLog = func(s *discordgo.Session, r *discordgo.Ready) {
	username := r.User.Username
	userID := r.User.ID
	slog.Info("Bot is ready", "username", username, "userID", userID)
}

// Overrides are the per-invocation bitrate and mode options. Zero
// values mean "use the caller's saved preferences".
type Overrides struct {
	BitrateKbps int
	Mode        transcode.Mode
}

// Apply layers the overrides over the caller's saved options.
func (o Overrides) Apply(base transcode.Options) transcode.Options {
	if o.BitrateKbps != 0 {
		base.BitrateKbps = o.BitrateKbps
	}
	if o.Mode != "" {
		base.Mode = o.Mode
	}
	return base
}

func parseOverrides(options []*discordgo.ApplicationCommandInteractionDataOption) (Overrides, error) {
	var overrides Overrides
	for _, option := range options {
		switch option.Name {
		case "bitrate":
			if option.Type != discordgo.ApplicationCommandOptionInteger {
				return Overrides{}, fmt.Errorf("invalid type for bitrate option")
			}
			kbps := int(option.IntValue())
			if !transcode.ValidBitrate(kbps) {
				return Overrides{}, fmt.Errorf("unsupported bitrate %d kbps", kbps)
			}
			overrides.BitrateKbps = kbps
		case "mode":
			if option.Type != discordgo.ApplicationCommandOptionString {
				return Overrides{}, fmt.Errorf("invalid type for mode option")
			}
			mode := transcode.Mode(option.StringValue())
			if mode != transcode.ModeVoice && mode != transcode.ModeMusic {
				return Overrides{}, fmt.Errorf("unknown mode %q", option.StringValue())
			}
			overrides.Mode = mode
		}
	}
	return overrides, nil
}

// EncodeFileRequest is a parsed "/opus encode" invocation.
type EncodeFileRequest struct {
	Attachment *discordgo.MessageAttachment
	Overrides  Overrides
}

func CommandToEncodeFileRequest(
	attachments map[string]*discordgo.MessageAttachment,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) (*EncodeFileRequest, error) {
	attachment, err := util.GetOne(attachments)
	if err != nil {
		return nil, err
	}

	overrides, err := parseOverrides(options)
	if err != nil {
		return nil, err
	}

	return &EncodeFileRequest{
		Attachment: attachment,
		Overrides:  overrides,
	}, nil
}

// EncodeLinkRequest is a parsed "/opus link" invocation.
type EncodeLinkRequest struct {
	URL       string
	Overrides Overrides
}

func CommandToEncodeLinkRequest(
	options []*discordgo.ApplicationCommandInteractionDataOption,
) (*EncodeLinkRequest, error) {
	var rawURL string
	for _, option := range options {
		if option.Name == "url" {
			if option.Type != discordgo.ApplicationCommandOptionString {
				return nil, fmt.Errorf("invalid type for url option")
			}
			rawURL = option.StringValue()
		}
	}
	if rawURL == "" {
		return nil, fmt.Errorf("url option is required")
	}

	overrides, err := parseOverrides(options)
	if err != nil {
		return nil, err
	}

	return &EncodeLinkRequest{
		URL:       rawURL,
		Overrides: overrides,
	}, nil
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		slog.Error("Failed to respond to interaction", "error", err)
	}
}

func MakeInteractionCreateHandler(
	coordinator *pipeline.Coordinator,
	prefs repository.PreferencesRepository,
) InteractionCreateHandler {
	startJob := func(s *discordgo.Session, i *discordgo.InteractionCreate, ref source.Reference, overrides Overrides) {
		userID := interactionUserID(i)
		ctx := context.Background()

		saved, err := prefs.Get(ctx, userID)
		if err != nil {
			slog.Warn("Failed to load preferences, using defaults", "error", err)
			saved = repository.Preferences{BitrateKbps: transcode.DefaultBitrateKbps, VoiceMode: true}
		}
		options := overrides.Apply(saved.Options())

		job, err := coordinator.NewJob(pipeline.Request{
			ChatID:  i.ChannelID,
			UserID:  userID,
			Ref:     ref,
			Options: options,
		})
		if err != nil {
			slog.Error("Failed to create job", "error", err)
			respond(s, i, "Something went wrong starting your job.", true)
			return
		}

		respond(s, i, fmt.Sprintf("Working on it: Opus %d kbps, %s mode.", options.BitrateKbps, options.Mode), false)
		go coordinator.Process(context.Background(), job)
	}

	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		command := i.ApplicationCommandData()
		if command.Name != "opus" {
			return
		}
		if len(command.Options) == 0 {
			slog.Warn("No subcommand provided for opus command")
			return
		}

		subCommand := command.Options[0]
		switch subCommand.Name {
		case "encode":
			attachments := map[string]*discordgo.MessageAttachment{}
			if command.Resolved != nil {
				attachments = command.Resolved.Attachments
			}
			request, err := CommandToEncodeFileRequest(attachments, subCommand.Options)
			if err != nil {
				slog.Warn("Failed to parse encode command", "error", err)
				respond(s, i, "That didn't look right: "+err.Error(), true)
				return
			}
			startJob(s, i, source.Reference{
				URL:  request.Attachment.URL,
				Name: request.Attachment.Filename,
			}, request.Overrides)

		case "link":
			request, err := CommandToEncodeLinkRequest(subCommand.Options)
			if err != nil {
				slog.Warn("Failed to parse link command", "error", err)
				respond(s, i, "That didn't look right: "+err.Error(), true)
				return
			}
			startJob(s, i, source.Reference{URL: request.URL}, request.Overrides)

		case "bitrate":
			overrides, err := parseOverrides(remapOption(subCommand.Options, "kbps", "bitrate"))
			if err != nil || overrides.BitrateKbps == 0 {
				respond(s, i, "Pick one of the supported bitrates.", true)
				return
			}
			userID := interactionUserID(i)
			ctx := context.Background()
			saved, err := prefs.Get(ctx, userID)
			if err != nil {
				slog.Error("Failed to load preferences", "error", err)
				respond(s, i, "Couldn't load your settings right now.", true)
				return
			}
			saved.BitrateKbps = overrides.BitrateKbps
			if err := prefs.Save(ctx, saved); err != nil {
				slog.Error("Failed to save preferences", "error", err)
				respond(s, i, "Couldn't save your settings right now.", true)
				return
			}
			respond(s, i, fmt.Sprintf("Default bitrate set to %d kbps.", saved.BitrateKbps), true)

		case "mode":
			overrides, err := parseOverrides(subCommand.Options)
			if err != nil || overrides.Mode == "" {
				respond(s, i, "Pick either voice or music mode.", true)
				return
			}
			userID := interactionUserID(i)
			ctx := context.Background()
			saved, err := prefs.Get(ctx, userID)
			if err != nil {
				slog.Error("Failed to load preferences", "error", err)
				respond(s, i, "Couldn't load your settings right now.", true)
				return
			}
			saved.VoiceMode = overrides.Mode == transcode.ModeVoice
			if err := prefs.Save(ctx, saved); err != nil {
				slog.Error("Failed to save preferences", "error", err)
				respond(s, i, "Couldn't save your settings right now.", true)
				return
			}
			respond(s, i, fmt.Sprintf("Default mode set to %s.", overrides.Mode), true)

		case "settings":
			saved, err := prefs.Get(context.Background(), interactionUserID(i))
			if err != nil {
				slog.Error("Failed to load preferences", "error", err)
				respond(s, i, "Couldn't load your settings right now.", true)
				return
			}
			options := saved.Options()
			respond(s, i, fmt.Sprintf("Your settings: %d kbps, %s mode.", options.BitrateKbps, options.Mode), true)
		}
	}
}

// remapOption renames an option so subcommands with differently named
// options can share parseOverrides.
func remapOption(
	options []*discordgo.ApplicationCommandInteractionDataOption,
	from, to string,
) []*discordgo.ApplicationCommandInteractionDataOption {
	remapped := make([]*discordgo.ApplicationCommandInteractionDataOption, 0, len(options))
	for _, option := range options {
		if option.Name == from {
			clone := *option
			clone.Name = to
			remapped = append(remapped, &clone)
			continue
		}
		remapped = append(remapped, option)
	}
	return remapped
}

type Handlers struct {
	Ready             ReadyHandler
	InteractionCreate InteractionCreateHandler
}

// NewSession builds the gateway session without opening it. Handlers
// are attached separately once the pipeline collaborators exist, since
// the deliverer needs the session itself.
func NewSession(token string) (*discordgo.Session, error) {
	return discordgo.New("Bot " + token)
}

// Attach registers the handlers on the session.
func (h Handlers) Attach(s *discordgo.Session) {
	s.AddHandler(h.Ready)
	s.AddHandler(h.InteractionCreate)
}
