package discord

import (
	"strings"

	"xnstat/internal/service"

	"github.com/bwmarrin/discordgo"
)

// Router は Discord の Interaction を各ハンドラに振り分ける役割。
type Router struct {
	ReportService service.ReportService
	WatchService  service.WatchService
	// SiteURL は埋め込みのリンク先。
	SiteURL string
}

// NewRouter で必要な service を全部 DI しておく。
func NewRouter(reportService service.ReportService, watchService service.WatchService, siteURL string) *Router {
	return &Router{
		ReportService: reportService,
		WatchService:  watchService,
		SiteURL:       strings.TrimRight(siteURL, "/"),
	}
}

// HandleInteraction は discordgo のイベントハンドラとして登録される入口。
// main.go 側で session.AddHandler(router.HandleInteraction) する想定。
func (r *Router) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	switch data.Name {
	case "ping":
		r.handlePing(s, i)
	case "lastlogs":
		r.handleLastLogs(s, i)
	case "player":
		r.handlePlayer(s, i)
	case "watch":
		r.handleWatch(s, i)
	default:
		// 未対応コマンドは無視
		return
	}
}

// /ping コマンドの処理。
func (r *Router) handlePing(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "pong",
		},
	})
}
