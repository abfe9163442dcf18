// Package discord runs the smt-tools Discord bot. [Bot] owns the gateway
// session and hands slash command and autocomplete interactions to a
// [CommandRouter].
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the bot token without the "Bot " prefix.
	Token string

	// GuildID registers commands in one guild, where they appear at once.
	// Empty registers them globally.
	GuildID string

	// KeepCommands leaves the registered commands in place on Close.
	// Global commands take a while to propagate, so long-lived deployments
	// usually set it.
	KeepCommands bool
}

// Bot is a connected Discord session serving the router's commands.
type Bot struct {
	session *discordgo.Session
	router  *CommandRouter
	cfg     Config

	// ctx is handed to command handlers and cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	registered []*discordgo.ApplicationCommand
	closeOnce  sync.Once
}

// New opens a gateway session. Commands are registered by [Bot.Run].
func New(_ context.Context, cfg Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		session: session,
		router:  NewCommandRouter(),
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		slog.Info("discord: ready", "user", r.User.Username, "guilds", len(r.Guilds))
	})
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(b.ctx, s, i)
	})

	if err := session.Open(); err != nil {
		cancel()
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return b, nil
}

// Router returns the router to register commands on before [Bot.Run].
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// Run registers the router's commands and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.registered = registered
		b.mu.Unlock()
		slog.Info("discord: commands registered", "count", len(registered), "guild_id", b.cfg.GuildID)
	}

	<-ctx.Done()
	return nil
}

// Close cancels running command handlers, removes the registered commands
// unless [Config.KeepCommands] is set, and closes the session.
func (b *Bot) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.cancel()

		b.mu.Lock()
		registered := b.registered
		b.mu.Unlock()
		if !b.cfg.KeepCommands {
			for _, cmd := range registered {
				if derr := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.cfg.GuildID, cmd.ID); derr != nil {
					slog.Warn("discord: delete command", "name", cmd.Name, "err", derr)
				}
			}
		}

		if cerr := b.session.Close(); cerr != nil {
			err = fmt.Errorf("discord: close session: %w", cerr)
		}
		slog.Info("discord: closed")
	})
	return err
}
