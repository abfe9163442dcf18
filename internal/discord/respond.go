package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// MaxChoices is the most autocomplete choices Discord accepts.
const MaxChoices = 25

func respond(s Responder, i *discordgo.InteractionCreate, typ discordgo.InteractionResponseType, data *discordgo.InteractionResponseData) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{Type: typ, Data: data}); err != nil {
		slog.Warn("discord: interaction response failed", "type", typ, "err", err)
	}
}

func followUp(s Responder, i *discordgo.InteractionCreate, params *discordgo.WebhookParams) {
	if _, err := s.FollowupMessageCreate(i.Interaction, true, params); err != nil {
		slog.Warn("discord: follow-up failed", "err", err)
	}
}

// RespondText answers with a message only the invoking user sees.
func RespondText(s Responder, i *discordgo.InteractionCreate, content string) {
	respond(s, i, discordgo.InteractionResponseChannelMessageWithSource, &discordgo.InteractionResponseData{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

// RespondEmbed answers with an embed only the invoking user sees.
func RespondEmbed(s Responder, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	respond(s, i, discordgo.InteractionResponseChannelMessageWithSource, &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  discordgo.MessageFlagsEphemeral,
	})
}

// RespondError answers with err's message.
func RespondError(s Responder, i *discordgo.InteractionCreate, err error) {
	RespondText(s, i, fmt.Sprintf("Error: %v", err))
}

// RespondChoices answers an autocomplete request. Names past [MaxChoices]
// are dropped.
func RespondChoices(s Responder, i *discordgo.InteractionCreate, names []string) {
	names = names[:min(len(names), MaxChoices)]
	choices := make([]*discordgo.ApplicationCommandOptionChoice, len(names))
	for n, name := range names {
		choices[n] = &discordgo.ApplicationCommandOptionChoice{Name: name, Value: name}
	}
	respond(s, i, discordgo.InteractionApplicationCommandAutocompleteResult, &discordgo.InteractionResponseData{Choices: choices})
}

// DeferReply acknowledges a slow command. The reply that follows is visible
// to the whole channel unless ephemeral is set.
func DeferReply(s Responder, i *discordgo.InteractionCreate, ephemeral bool) {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	respond(s, i, discordgo.InteractionResponseDeferredChannelMessageWithSource, data)
}

// FollowUp completes a deferred reply with text.
func FollowUp(s Responder, i *discordgo.InteractionCreate, content string) {
	followUp(s, i, &discordgo.WebhookParams{Content: content})
}

// FollowUpEmbed completes a deferred reply with an embed.
func FollowUpEmbed(s Responder, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	followUp(s, i, &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}})
}
