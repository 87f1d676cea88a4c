package discord

import (
	"xnstat/internal/discord/common"

	"github.com/bwmarrin/discordgo"
)

// /player name
func (r *Router) handlePlayer(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_, opts := common.OptionMap(i.ApplicationCommandData().Options)
	name := common.OptionString(opts, "name")
	if name == "" {
		common.RespondEphemeral(s, i, "name を指定して")
		return
	}
	if err := common.DeferPublic(s, i); err != nil {
		common.Logf("[discord] player defer failed: %v", err)
		return
	}
	ctx, cancel := common.CommandContextForInteraction(s, i)
	defer cancel()

	planets, err := r.ReportService.PlayerPlanets(ctx, name)
	if err != nil {
		_ = common.EditInteractionResponse(s, i, "検索に失敗した: "+err.Error(), nil)
		return
	}
	_ = common.EditInteractionResponse(s, i, "", playerEmbed(name, planets, r.SiteURL))
}
