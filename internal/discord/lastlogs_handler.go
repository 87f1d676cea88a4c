package discord

import (
	"time"

	"xnstat/internal/discord/common"

	"github.com/bwmarrin/discordgo"
)

const lastLogsLimit = 50

// /lastlogs [hours] [nick]
func (r *Router) handleLastLogs(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_, opts := common.OptionMap(i.ApplicationCommandData().Options)
	hours := common.OptionInt(opts, "hours", 24)
	if hours <= 0 {
		hours = 24
	}
	nick := common.OptionString(opts, "nick")

	if err := common.DeferPublic(s, i); err != nil {
		common.Logf("[discord] lastlogs defer failed: %v", err)
		return
	}
	ctx, cancel := common.CommandContextForInteraction(s, i)
	defer cancel()

	records, err := r.ReportService.RecentLogs(ctx, time.Duration(hours)*time.Hour, nick, lastLogsLimit)
	if err != nil {
		_ = common.EditInteractionResponse(s, i, "ログの取得に失敗した: "+err.Error(), nil)
		return
	}
	_ = common.EditInteractionResponse(s, i, "", lastLogsEmbed(records, hours, nick, time.Now()))
}
