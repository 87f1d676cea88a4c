package discord

import (
	"errors"
	"fmt"

	"xnstat/internal/discord/common"
	"xnstat/internal/service"

	"github.com/bwmarrin/discordgo"
)

// /watch add|remove|list
func (r *Router) handleWatch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub, opts := common.OptionMap(i.ApplicationCommandData().Options)
	name := common.OptionString(opts, "name")

	if err := common.DeferEphemeral(s, i); err != nil {
		common.Logf("[discord] watch defer failed: %v", err)
		return
	}
	ctx, cancel := common.CommandContextForInteraction(s, i)
	defer cancel()

	switch sub {
	case "add":
		p, added, err := r.WatchService.Add(ctx, name)
		switch {
		case errors.Is(err, service.ErrPlayerNotFound):
			_ = common.EditInteractionResponse(s, i, fmt.Sprintf("%s はギャラクシーDBに居ない", name), nil)
		case err != nil:
			_ = common.EditInteractionResponse(s, i, "追加に失敗した: "+err.Error(), nil)
		case !added:
			_ = common.EditInteractionResponse(s, i, fmt.Sprintf("%s は既に監視中", p.PlayerName), nil)
		default:
			_ = common.EditInteractionResponse(s, i, fmt.Sprintf("%s (id %d) を監視に追加した", p.PlayerName, p.PlayerID), nil)
		}
	case "remove":
		removed, err := r.WatchService.Remove(ctx, name)
		switch {
		case err != nil:
			_ = common.EditInteractionResponse(s, i, "削除に失敗した: "+err.Error(), nil)
		case !removed:
			_ = common.EditInteractionResponse(s, i, fmt.Sprintf("%s は監視していない", name), nil)
		default:
			_ = common.EditInteractionResponse(s, i, fmt.Sprintf("%s を監視から外した", name), nil)
		}
	case "list":
		list, err := r.WatchService.List(ctx)
		if err != nil {
			_ = common.EditInteractionResponse(s, i, "一覧の取得に失敗した: "+err.Error(), nil)
			return
		}
		_ = common.EditInteractionResponse(s, i, "", watchListEmbed(list))
	default:
		_ = common.EditInteractionResponse(s, i, "不明なサブコマンド", nil)
	}
}
