// Package bot is a small Slack bot built on pkg/rtm. Each workspace in the
// config gets its own Session and Registry; Run drives them all and returns
// when the context ends or one of them fails.
//
// The bot:
//   - logs who it connected as on every open;
//   - answers chat commands (!help, !ping, !typing, !stats, !say);
//   - ignores edits, bot posts and its own messages.
//
// Replies go through the Web API (slack-go); !say and !typing go over the
// websocket.
//
// Config (YAML):
//
//	log_level: info
//	log_format: text
//	workspaces:
//	  - name: acme
//	    token_env: ACME_SLACK_TOKEN
//	    connect_method: rtm.connect
//	    ping_interval: 30s
//	    max_backoff: 5m
//	    proxy:
//	      https: http://proxy.internal:3128
//
// Example:
//
//	cfg, err := bot.Load("rtmbot.yaml")
//	if err != nil { log.Fatal(err) }
//	b, err := bot.New(cfg, bot.WithLogger(cfg.Logger()))
//	if err != nil { log.Fatal(err) }
//	if err := b.Run(ctx); err != nil { log.Fatal(err) }
package bot
