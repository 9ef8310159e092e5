// Package webapi is a minimal caller for the Slack Web API. It performs one
// authenticated form-encoded POST per method and returns the decoded JSON
// object, turning "ok": false and HTTP 429 replies into *APIError.
//
// The RTM client only needs rtm.connect / rtm.start from here. For the rest
// of the endpoint catalogue, Client.Slack hands out a github.com/slack-go/slack
// client that shares the same token, base URL and HTTP transport:
//
//	api := webapi.New(os.Getenv("SLACK_BOT_TOKEN"))
//	resp, err := api.RTMConnect(ctx)
//	if err != nil { ... }
//	fmt.Println(resp.String("url"))
//
//	_, _, err = api.Slack().PostMessageContext(ctx, "C123", slack.MsgOptionText("hi", false))
package webapi
