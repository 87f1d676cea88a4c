package common

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

func RespondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func DeferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func DeferPublic(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func CommandContext() (context.Context, context.CancelFunc) {
	timeout := envDuration("DISCORD_COMMAND_TIMEOUT", 60*time.Second)
	return context.WithTimeout(context.Background(), timeout)
}

// CommandContextForInteraction はタイムアウトしたら利用者にその旨を返す。
func CommandContextForInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) (context.Context, context.CancelFunc) {
	ctx, cancel := CommandContext()
	if s == nil || i == nil {
		return ctx, cancel
	}
	go func() {
		<-ctx.Done()
		if ctx.Err() == context.DeadlineExceeded {
			Logf("[discord][timeout] interaction timeout: id=%s guild=%s", i.ID, i.GuildID)
			if err := EditInteractionResponse(s, i, "処理が中断した", nil); err != nil {
				Logf("[discord][timeout] edit response failed: id=%s err=%v", i.ID, err)
			}
		}
	}()
	return ctx, cancel
}

func EditInteractionResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string, embed *discordgo.MessageEmbed) error {
	if s == nil || i == nil {
		return fmt.Errorf("interaction not available")
	}
	edit := &discordgo.WebhookEdit{}
	if content != "" {
		edit.Content = &content
	}
	if embed != nil {
		embeds := []*discordgo.MessageEmbed{embed}
		edit.Embeds = &embeds
	}
	_, err := s.InteractionResponseEdit(i.Interaction, edit)
	return err
}

// OptionMap はオプションを名前で引けるようにする。サブコマンドなら1段下を見る。
func OptionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) (string, map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	sub := ""
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		sub = opts[0].Name
		opts = opts[0].Options
	}
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return sub, m
}

func OptionString(m map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := m[name]; ok && o != nil {
		return strings.TrimSpace(o.StringValue())
	}
	return ""
}

func OptionInt(m map[string]*discordgo.ApplicationCommandInteractionDataOption, name string, def int64) int64 {
	if o, ok := m[name]; ok && o != nil {
		return o.IntValue()
	}
	return def
}

func DebugEnabled() bool {
	if envBool("XNOVA_DEBUG") {
		return true
	}
	return envBool("DISCORD_DEBUG")
}

func Logf(format string, args ...any) {
	if DebugEnabled() {
		fmt.Printf(format+"\n", args...)
	}
}

func FormatMSK(t time.Time) string {
	return t.In(time.FixedZone("MSK", 3*60*60)).Format("2006-01-02 15:04 MSK")
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
