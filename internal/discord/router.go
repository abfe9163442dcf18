package discord

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pickled-dev/smt-tools/internal/observe"
)

// Responder is the part of [discordgo.Session] that interaction handlers
// use to answer.
type Responder interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// HandlerFunc handles a slash command. ctx is cancelled when the bot shuts
// down.
type HandlerFunc func(ctx context.Context, s Responder, i *discordgo.InteractionCreate)

// AutocompleteFunc answers an autocomplete request. It must respond
// immediately.
type AutocompleteFunc func(s Responder, i *discordgo.InteractionCreate)

type route struct {
	def *discordgo.ApplicationCommand
	run HandlerFunc
}

// CommandRouter dispatches interactions by route key: the command name, or
// "command/subcommand" for subcommands.
type CommandRouter struct {
	mu         sync.RWMutex
	routes     map[string]route
	completers map[string]AutocompleteFunc
}

// NewCommandRouter returns an empty router.
func NewCommandRouter() *CommandRouter {
	return &CommandRouter{
		routes:     make(map[string]route),
		completers: make(map[string]AutocompleteFunc),
	}
}

// RegisterCommand routes key to h. def is the top-level command that key
// belongs to; several subcommand keys usually share one def.
func (r *CommandRouter) RegisterCommand(key string, def *discordgo.ApplicationCommand, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[key] = route{def: def, run: h}
}

// RegisterAutocomplete routes autocomplete requests for key to h.
func (r *CommandRouter) RegisterAutocomplete(key string, h AutocompleteFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completers[key] = h
}

// ApplicationCommands returns each distinct top-level command once, sorted
// by name.
func (r *CommandRouter) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byName := make(map[string]*discordgo.ApplicationCommand)
	for _, rt := range r.routes {
		if rt.def != nil {
			byName[rt.def.Name] = rt.def
		}
	}
	cmds := make([]*discordgo.ApplicationCommand, 0, len(byName))
	for _, def := range byName {
		cmds = append(cmds, def)
	}
	slices.SortFunc(cmds, func(a, b *discordgo.ApplicationCommand) int { return strings.Compare(a.Name, b.Name) })
	return cmds
}

// Handle dispatches one interaction.
func (r *CommandRouter) Handle(ctx context.Context, s Responder, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		r.command(ctx, s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		r.complete(s, i)
	default:
		slog.Debug("discord: ignoring interaction", "type", i.Type)
	}
}

func routeKey(data discordgo.ApplicationCommandInteractionData) string {
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return data.Name + "/" + data.Options[0].Name
	}
	return data.Name
}

func (r *CommandRouter) command(ctx context.Context, s Responder, i *discordgo.InteractionCreate) {
	key := routeKey(i.ApplicationCommandData())

	r.mu.RLock()
	rt, ok := r.routes[key]
	r.mu.RUnlock()
	if !ok {
		slog.Warn("discord: no handler for command", "command", key)
		RespondText(s, i, "This command is not available.")
		return
	}

	ctx, span := observe.StartSpan(ctx, "discord.command",
		trace.WithAttributes(attribute.String("discord.command", key)))
	var err error
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			observe.Logger(ctx).Error("discord: command panicked", "command", key, "panic", p)
			RespondText(s, i, "Something went wrong while handling this command.")
		}
		observe.EndSpan(span, err)
	}()

	observe.Logger(ctx).Debug("discord: command", "command", key, "user", userID(i))
	rt.run(ctx, s, i)
}

func (r *CommandRouter) complete(s Responder, i *discordgo.InteractionCreate) {
	key := routeKey(i.ApplicationCommandData())

	r.mu.RLock()
	h, ok := r.completers[key]
	r.mu.RUnlock()
	if !ok {
		RespondChoices(s, i, nil)
		return
	}
	h(s, i)
}

// userID returns the invoking user in guilds and DMs alike.
func userID(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}
