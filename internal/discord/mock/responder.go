// Package mock provides a recording [discord.Responder] for handler tests.
package mock

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Responder records every interaction response and follow-up.
type Responder struct {
	// Err, when set, is returned from every call.
	Err error

	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	followUps []*discordgo.WebhookParams
}

func (m *Responder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	return m.Err
}

func (m *Responder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, params *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.followUps = append(m.followUps, params)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "followup"}, nil
}

// Responses returns the recorded responses in call order.
func (m *Responder) Responses() []*discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*discordgo.InteractionResponse(nil), m.responses...)
}

// Last returns the latest response, or nil.
func (m *Responder) Last() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return nil
	}
	return m.responses[len(m.responses)-1]
}

// LastFollowUp returns the latest follow-up, or nil.
func (m *Responder) LastFollowUp() *discordgo.WebhookParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.followUps) == 0 {
		return nil
	}
	return m.followUps[len(m.followUps)-1]
}

// Choices returns the choice names of the latest response.
func (m *Responder) Choices() []string {
	last := m.Last()
	if last == nil || last.Data == nil {
		return nil
	}
	var names []string
	for _, c := range last.Data.Choices {
		names = append(names, c.Name)
	}
	return names
}
