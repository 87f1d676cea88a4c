package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Session は main から使う discordgo.Session の薄いラッパー。
type Session interface {
	AddHandler(handler interface{}) func()
	Start(ctx context.Context) error
	RegisterCommands(ctx context.Context, appID, guildID string) error
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) error
	Close() error
}

type session struct {
	dg *discordgo.Session
}

func NewSession(token string) (Session, error) {
	if token == "" {
		return nil, errors.New("discord token is required")
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds
	return &session{dg: dg}, nil
}

func (s *session) AddHandler(handler interface{}) func() {
	return s.dg.AddHandler(handler)
}

// Start は Gateway に繋ぐ。ctx が先に切れたらエラーを返す。
func (s *session) Start(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.dg.Open() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) RegisterCommands(ctx context.Context, appID, guildID string) error {
	if appID == "" {
		return errors.New("discord app id is required")
	}
	_, err := s.dg.ApplicationCommandBulkOverwrite(appID, guildID, Commands(), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk overwrite commands: %w", err)
	}
	return nil
}

// SendEmbed は REST だけで送るので Start 前でも使える。
func (s *session) SendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	_, err := s.dg.ChannelMessageSendEmbed(channelID, embed)
	return err
}

func (s *session) Close() error {
	return s.dg.Close()
}
