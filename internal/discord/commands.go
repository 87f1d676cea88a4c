package discord

import "github.com/bwmarrin/discordgo"

// Commands はこのBotで使う全てのスラッシュコマンド定義を返す。
func Commands() []*discordgo.ApplicationCommand {
	manageGuildPerm := int64(discordgo.PermissionManageServer)
	minHours := 1.0
	return []*discordgo.ApplicationCommand{
		{
			Name:        "ping",
			Description: "Check if the bot is alive.",
		},
		{
			Name:        "lastlogs",
			Description: "Show recent battle logs.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "hours",
					Description: "How many hours back (default 24)",
					MinValue:    &minHours,
					MaxValue:    24 * 30,
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "nick",
					Description: "Attacker or defender name prefix",
					Required:    false,
				},
			},
		},
		{
			Name:        "player",
			Description: "Show planets of a player.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Player name",
					Required:    true,
				},
			},
		},
		{
			Name:        "watch",
			Description: "Manage watched players",
			DMPermission: func() *bool {
				v := false
				return &v
			}(),
			DefaultMemberPermissions: &manageGuildPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Start watching a player",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "name",
							Description: "Player name",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Stop watching a player",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "name",
							Description: "Player name",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List watched players",
				},
			},
		},
	}
}
