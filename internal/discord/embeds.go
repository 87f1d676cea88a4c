package discord

import (
	"fmt"
	"strings"
	"time"

	"xnstat/internal/discord/common"
	"xnstat/internal/domain"
	"xnstat/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
)

const (
	colorBattle     = 0xE67E22
	colorBigBattle  = 0xE74C3C
	colorInfo       = 0x3498DB
	colorWatch      = 0x2ECC71
	bigBattleLoss   = 10000000
	maxEmbedLines   = 15
	embedFieldLimit = 1024
)

// battleEmbed は戦闘ログ1件の通知用。
func battleEmbed(rec domain.BattleRecord, siteURL string) *discordgo.MessageEmbed {
	color := colorBattle
	if rec.TotalLoss >= bigBattleLoss {
		color = colorBigBattle
	}
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Боевой доклад #%d", rec.LogID),
		URL:   fmt.Sprintf("%s/log/%d/", siteURL, rec.LogID),
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Атакующий", Value: sideValue(rec.Attacker, rec.AttackerCoords), Inline: true},
			{Name: "Защитник", Value: sideValue(rec.Defender, rec.DefenderCoords), Inline: true},
			{Name: "Потери", Value: humanize.Comma(rec.TotalLoss), Inline: false},
			{Name: "Поле обломков", Value: fmt.Sprintf("%s me / %s cry", humanize.Comma(rec.PoMetal), humanize.Comma(rec.PoCrystal)), Inline: true},
			{Name: "Добыча", Value: fmt.Sprintf("%s me / %s cry / %s deit",
				humanize.Comma(rec.WinMetal), humanize.Comma(rec.WinCrystal), humanize.Comma(rec.WinDeuterium)), Inline: true},
		},
	}
	if rec.MoonChance > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Луна", Value: fmt.Sprintf("%d%%", rec.MoonChance), Inline: true,
		})
	}
	if rec.LogTime > 0 {
		at := time.Unix(rec.LogTime, 0)
		embed.Timestamp = at.UTC().Format(time.RFC3339)
		// ゲーム内時刻は MSK
		embed.Footer = &discordgo.MessageEmbedFooter{Text: common.FormatMSK(at)}
	}
	return embed
}

func sideValue(names, coords string) string {
	v := names
	if coords != "" {
		v += "\n" + coords
	}
	if v == "" {
		return "-"
	}
	return truncate(v, embedFieldLimit)
}

// lastLogsEmbed は /lastlogs の一覧。
func lastLogsEmbed(records []domain.BattleRecord, hours int64, nick string, now time.Time) *discordgo.MessageEmbed {
	title := fmt.Sprintf("Последние бои за %d ч.", hours)
	if nick != "" {
		title += " (" + nick + ")"
	}
	embed := &discordgo.MessageEmbed{Title: title, Color: colorInfo}
	if len(records) == 0 {
		embed.Description = "Нет боёв"
		return embed
	}
	var b strings.Builder
	for n, rec := range records {
		if n == maxEmbedLines {
			fmt.Fprintf(&b, "... +%d", len(records)-n)
			break
		}
		fmt.Fprintf(&b, "`#%d` %s vs %s: %s (%s)\n",
			rec.LogID, rec.Attacker, rec.Defender, service.ResStr(rec.TotalLoss),
			humanize.RelTime(time.Unix(rec.LogTime, 0), now, "ago", "from now"))
	}
	embed.Description = b.String()
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d боёв", len(records))}
	return embed
}

// playerEmbed は /player の惑星一覧。
func playerEmbed(name string, planets []domain.Planet, siteURL string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Title: name, Color: colorInfo}
	if len(planets) == 0 {
		embed.Description = "Игрок не найден"
		return embed
	}
	first := planets[0]
	if flags := service.UserFlags(first); flags != "" {
		embed.Title += " (" + flags + ")"
	}
	var b strings.Builder
	moons := 0
	for n, p := range planets {
		if p.MoonID > 0 {
			moons++
		}
		if n >= maxEmbedLines {
			continue
		}
		fmt.Fprintf(&b, "[%s](%s/galaxy/%d/%d/) %s", p.Coords, siteURL, p.Galaxy, p.System, p.PlanetName)
		if p.PlanetType == domain.PlanetTypeBase {
			b.WriteString(" (base)")
		}
		if p.MoonName != "" {
			fmt.Fprintf(&b, " + %s", p.MoonName)
		}
		b.WriteString("\n")
	}
	if len(planets) > maxEmbedLines {
		fmt.Fprintf(&b, "... +%d", len(planets)-maxEmbedLines)
	}
	embed.Description = b.String()
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Рейтинг", Value: humanize.Comma(int64(first.UserRank)), Inline: true},
		{Name: "Планеты", Value: fmt.Sprintf("%d", len(planets)), Inline: true},
		{Name: "Луны", Value: fmt.Sprintf("%d", moons), Inline: true},
	}
	if first.AllyName != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Альянс", Value: fmt.Sprintf("%s [%s]", first.AllyName, first.AllyTag), Inline: true,
		})
	}
	return embed
}

// watchListEmbed は /watch list の一覧。
func watchListEmbed(list []service.WatchStatus) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Title: "Watched players", Color: colorWatch}
	if len(list) == 0 {
		embed.Description = "no players"
		return embed
	}
	var b strings.Builder
	for _, st := range list {
		fmt.Fprintf(&b, "**%s** (id %d)", st.Player.PlayerName, st.Player.PlayerID)
		switch {
		case st.Check == nil:
			b.WriteString(": not checked yet")
		case !st.Check.Known():
			fmt.Fprintf(&b, ": no planets found, checked %s", humanize.Time(time.Unix(st.Check.CheckTime, 0)))
		default:
			fmt.Fprintf(&b, ": active %d min ago on %d planets, checked %s",
				st.Check.OnlineTime, st.Check.NumPlanets, humanize.Time(time.Unix(st.Check.CheckTime, 0)))
		}
		b.WriteString("\n")
	}
	embed.Description = truncate(b.String(), 4096)
	return embed
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
