package rtm

import (
	"context"

	"github.com/EgorLis/slackrtm/pkg/webapi"
)

const missingURLMessage = "Unable to retreive RTM URL from Slack."

type connectInfo struct {
	URL string
	// State is the whole bootstrap response; it becomes the open event's Data.
	State Payload
}

// retrieveConnectInfo performs one rtm.connect / rtm.start call. Caller
// errors are returned unchanged so rate limits and API codes stay visible.
func (s *Session) retrieveConnectInfo(ctx context.Context) (*connectInfo, error) {
	resp, err := s.caller.Call(ctx, string(s.connectMethod), nil)
	if err != nil {
		return nil, err
	}
	wsURL := resp.String("url")
	if wsURL == "" {
		return nil, &webapi.APIError{Message: missingURLMessage, Response: resp}
	}
	return &connectInfo{URL: wsURL, State: Payload(resp.Data)}, nil
}
