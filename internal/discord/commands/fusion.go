// Package commands implements the smt-tools slash commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/pickled-dev/smt-tools/internal/discord"
	"github.com/pickled-dev/smt-tools/internal/service"
	"github.com/pickled-dev/smt-tools/pkg/fusion"
)

const (
	fusionColor = 0xE03C3C

	// maxEmbedChains is how many chains one reply shows.
	maxEmbedChains = 5

	// maxEmbedFailures is how many failure reasons one reply shows.
	maxEmbedFailures = 5

	maxFieldValueLen       = 1024
	maxEmbedDescriptionLen = 4096
)

// skillOptionNames are the option names of the skill slots, in order.
var skillOptionNames = []string{"skill1", "skill2", "skill3", "skill4", "skill5", "skill6", "skill7", "skill8"}

// FusionCommands handles the /fusion slash command group.
type FusionCommands struct {
	svc *service.Service
}

// NewFusionCommands creates the /fusion handlers.
func NewFusionCommands(svc *service.Service) *FusionCommands {
	return &FusionCommands{svc: svc}
}

// Register registers all /fusion subcommands and their autocomplete
// handlers with the router.
func (fc *FusionCommands) Register(router *discord.CommandRouter) {
	def := fc.Definition()
	router.RegisterCommand("fusion/chain", def, fc.handleChain)
	router.RegisterCommand("fusion/creature", def, fc.handleCreature)
	router.RegisterCommand("fusion/skill", def, fc.handleSkill)
	router.RegisterAutocomplete("fusion/chain", fc.handleAutocomplete)
	router.RegisterAutocomplete("fusion/creature", fc.handleAutocomplete)
	router.RegisterAutocomplete("fusion/skill", fc.handleAutocomplete)
}

// Definition returns the /fusion ApplicationCommand for Discord registration.
func (fc *FusionCommands) Definition() *discordgo.ApplicationCommand {
	chainOpts := make([]*discordgo.ApplicationCommandOption, 0, len(skillOptionNames)+4)
	for n, name := range skillOptionNames {
		chainOpts = append(chainOpts, &discordgo.ApplicationCommandOption{
			Name:         name,
			Description:  fmt.Sprintf("Skill %d", n+1),
			Type:         discordgo.ApplicationCommandOptionString,
			Required:     n == 0,
			Autocomplete: true,
		})
	}
	minLevel := float64(1)
	chainOpts = append(chainOpts,
		&discordgo.ApplicationCommandOption{
			Name:         "creature",
			Description:  "Creature that must be the result",
			Type:         discordgo.ApplicationCommandOptionString,
			Autocomplete: true,
		},
		&discordgo.ApplicationCommandOption{
			Name:        "max_level",
			Description: "Your current level",
			Type:        discordgo.ApplicationCommandOptionInteger,
			MinValue:    &minLevel,
			MaxValue:    fusion.DefaultMaxLevel,
		},
		&discordgo.ApplicationCommandOption{
			Name:        "deep",
			Description: "Also try recipes whose sources know none of the skills",
			Type:        discordgo.ApplicationCommandOptionBoolean,
		},
		&discordgo.ApplicationCommandOption{
			Name:        "share",
			Description: "Post the result to the channel instead of only to you",
			Type:        discordgo.ApplicationCommandOptionBoolean,
		},
	)

	return &discordgo.ApplicationCommand{
		Name:        "fusion",
		Description: "Plan creature fusions",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "chain",
				Description: "Find fusion chains that give a creature a set of skills",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     chainOpts,
			},
			{
				Name:        "creature",
				Description: "Show a creature and how to fuse it",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:         "name",
						Description:  "Creature name",
						Type:         discordgo.ApplicationCommandOptionString,
						Required:     true,
						Autocomplete: true,
					},
				},
			},
			{
				Name:        "skill",
				Description: "Show a skill and who learns it",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:         "name",
						Description:  "Skill name",
						Type:         discordgo.ApplicationCommandOptionString,
						Required:     true,
						Autocomplete: true,
					},
				},
			},
		},
	}
}

// handleChain handles /fusion chain.
func (fc *FusionCommands) handleChain(ctx context.Context, s discord.Responder, i *discordgo.InteractionCreate) {
	opts := subcommandOptions(i)
	req := fusion.Request{}
	for _, name := range skillOptionNames {
		if opt, ok := opts[name]; ok {
			req.Skills = append(req.Skills, opt.StringValue())
		}
	}
	if opt, ok := opts["creature"]; ok {
		req.Creature = opt.StringValue()
	}
	if opt, ok := opts["max_level"]; ok {
		req.MaxLevel = int(opt.IntValue())
	}
	if opt, ok := opts["deep"]; ok {
		req.DeepSearch = opt.BoolValue()
	}
	share := false
	if opt, ok := opts["share"]; ok {
		share = opt.BoolValue()
	}

	discord.DeferReply(s, i, !share)

	out, err := fc.svc.Search(ctx, req)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		discord.FollowUp(s, i, "The search took too long. Try pinning a creature or lowering the number of skills.")
		return
	case errors.Is(err, context.Canceled):
		discord.FollowUp(s, i, "The bot is shutting down. Please try again in a moment.")
		return
	case err != nil:
		discord.FollowUp(s, i, fmt.Sprintf("Search failed: %v", err))
		return
	}
	discord.FollowUpEmbed(s, i, chainEmbed(req, out))
}

// handleCreature handles /fusion creature.
func (fc *FusionCommands) handleCreature(_ context.Context, s discord.Responder, i *discordgo.InteractionCreate) {
	info, err := fc.svc.Creature(stringOption(i, "name"))
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}

	skills := make([]string, 0, len(info.Skills))
	for name, lvl := range info.Skills {
		skills = append(skills, fmt.Sprintf("%s (%d)", name, lvl))
	}
	slices.Sort(skills)

	var recipes []string
	for _, r := range info.Producing {
		recipes = append(recipes, fmt.Sprintf("%s (%d)", strings.Join(r.Sources, " + "), r.Cost))
	}

	embed := &discordgo.MessageEmbed{
		Title: info.Name,
		Color: fusionColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Race", Value: orNone(info.Race), Inline: true},
			{Name: "Level", Value: fmt.Sprint(info.Level), Inline: true},
			{Name: "Inherits", Value: orNone(info.Inherits), Inline: true},
			{Name: "Skills", Value: truncate(orNone(strings.Join(skills, ", ")), maxFieldValueLen)},
			{Name: "Recipes", Value: truncate(orNone(strings.Join(recipes, "\n")), maxFieldValueLen)},
		},
	}
	discord.RespondEmbed(s, i, embed)
}

// handleSkill handles /fusion skill.
func (fc *FusionCommands) handleSkill(_ context.Context, s discord.Responder, i *discordgo.InteractionCreate) {
	info, err := fc.svc.Skill(stringOption(i, "name"))
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Element", Value: orNone(info.Element), Inline: true},
		{Name: "Level", Value: fmt.Sprint(info.Level), Inline: true},
	}
	if info.Unique != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Unique to", Value: info.Unique, Inline: true})
	}
	fields = append(fields, &discordgo.MessageEmbedField{
		Name:  "Learned by",
		Value: truncate(orNone(strings.Join(info.InnateTo, ", ")), maxFieldValueLen),
	})
	discord.RespondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       info.Name,
		Description: info.Description,
		Color:       fusionColor,
		Fields:      fields,
	})
}

// handleAutocomplete completes creature and skill names for whichever
// option has focus.
func (fc *FusionCommands) handleAutocomplete(s discord.Responder, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		discord.RespondChoices(s, i, nil)
		return
	}
	sub := data.Options[0]
	for _, opt := range sub.Options {
		if !opt.Focused {
			continue
		}
		partial := opt.StringValue()
		switch {
		case opt.Name == "creature" || (sub.Name == "creature" && opt.Name == "name"):
			discord.RespondChoices(s, i, fc.svc.CompleteCreatures(partial, discord.MaxChoices))
		default:
			discord.RespondChoices(s, i, fc.svc.CompleteSkills(partial, discord.MaxChoices))
		}
		return
	}
	discord.RespondChoices(s, i, nil)
}

// chainEmbed renders a search outcome.
func chainEmbed(req fusion.Request, out fusion.Outcome) *discordgo.MessageEmbed {
	title := "Fusion chains for " + strings.Join(req.Skills, ", ")
	if req.Creature != "" {
		title = fmt.Sprintf("Fusion chains for %s with %s", req.Creature, strings.Join(req.Skills, ", "))
	}
	embed := &discordgo.MessageEmbed{
		Title:  truncate(title, 256),
		Color:  fusionColor,
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d chains, %d steps searched", len(out.Chains), out.Stats.Steps)},
	}

	for n, ch := range out.Chains {
		if n == maxEmbedChains {
			break
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%d. %s (level %d, cost %d)", n+1, ch.Result, ch.Level, ch.Cost),
			Value: truncate(strings.Join(ch.Directions, "\n"), maxFieldValueLen),
		})
	}

	if len(out.Chains) == 0 {
		var lines []string
		for n, f := range out.Failures {
			if n == maxEmbedFailures {
				lines = append(lines, fmt.Sprintf("...and %d more.", len(out.Failures)-n))
				break
			}
			lines = append(lines, f.Error())
		}
		if len(lines) == 0 {
			lines = append(lines, "No fusion chain found.")
		}
		embed.Description = truncate(strings.Join(lines, "\n"), maxEmbedDescriptionLen)
	}
	return embed
}

// subcommandOptions maps the first subcommand's options by name.
func subcommandOptions(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return opts
	}
	for _, opt := range data.Options[0].Options {
		opts[opt.Name] = opt
	}
	return opts
}

// stringOption returns the named string option of the first subcommand, or
// "" when it is absent.
func stringOption(i *discordgo.InteractionCreate, name string) string {
	if opt, ok := subcommandOptions(i)[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
