package discord

import (
	"context"
	"errors"
	"strings"

	"xnstat/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// EmbedSender は Session が満たす。
type EmbedSender interface {
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) error
}

// BattleNotifier は損害が閾値以上の戦闘をチャンネルに流す。
type BattleNotifier struct {
	sender    EmbedSender
	channelID string
	minLoss   int64
	siteURL   string
}

func NewBattleNotifier(sender EmbedSender, channelID string, minLoss int64, siteURL string) (*BattleNotifier, error) {
	if sender == nil || channelID == "" {
		return nil, errors.New("sender and channelID are required")
	}
	return &BattleNotifier{
		sender:    sender,
		channelID: channelID,
		minLoss:   minLoss,
		siteURL:   strings.TrimRight(siteURL, "/"),
	}, nil
}

func (n *BattleNotifier) NotifyBattle(ctx context.Context, rec domain.BattleRecord) error {
	if rec.TotalLoss < n.minLoss {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.sender.SendEmbed(n.channelID, battleEmbed(rec, n.siteURL))
}
