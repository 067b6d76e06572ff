package xbox

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ely.by/mcauth/internal/transport"
)

type JSONClient interface {
	GetJSON(ctx context.Context, url string, header http.Header, out any) error
	PostJSON(ctx context.Context, url string, in any, out any) error
}

type Endpoints struct {
	UserAuthenticate string
	XSTSAuthorize    string
	LoginWithXbox    string
	GameProfile      string
}

var DefaultEndpoints = Endpoints{
	UserAuthenticate: "https://user.auth.xboxlive.com/user/authenticate",
	XSTSAuthorize:    "https://xsts.auth.xboxlive.com/xsts/authorize",
	LoginWithXbox:    "https://api.minecraftservices.com/authentication/login_with_xbox",
	GameProfile:      "https://api.minecraftservices.com/minecraft/profile",
}

// Client performs the Xbox Live hops of the chain and talks to the game services
type Client struct {
	client    JSONClient
	endpoints Endpoints
}

func NewClient(client JSONClient) *Client {
	return &Client{
		client:    client,
		endpoints: DefaultEndpoints,
	}
}

// Ticket is an XBL or XSTS token together with the user hash it was issued for
type Ticket struct {
	Token    string
	UserHash string
	NotAfter time.Time
}

type xblProperties struct {
	AuthMethod string `json:"AuthMethod"`
	SiteName   string `json:"SiteName"`
	RpsTicket  string `json:"RpsTicket"`
}

type xblRequest struct {
	RelyingParty string        `json:"RelyingParty"`
	TokenType    string        `json:"TokenType"`
	Properties   xblProperties `json:"Properties"`
}

type xstsProperties struct {
	UserTokens []string `json:"UserTokens"`
	SandboxId  string   `json:"SandboxId"`
}

type xstsRequest struct {
	RelyingParty string         `json:"RelyingParty"`
	TokenType    string         `json:"TokenType"`
	Properties   xstsProperties `json:"Properties"`
}

type ticketResponse struct {
	// Only error responses have these fields
	Identity string `json:"Identity"`
	XErr     int64  `json:"XErr"`
	Message  string `json:"Message"`
	Redirect string `json:"Redirect"`

	IssueInstant  time.Time `json:"IssueInstant"`
	NotAfter      time.Time `json:"NotAfter"`
	Token         string    `json:"Token"`
	DisplayClaims struct {
		Xui []struct {
			Uhs string `json:"uhs"`
		} `json:"xui"`
	} `json:"DisplayClaims"`
}

func (r *ticketResponse) ticket(endpoint string) (*Ticket, error) {
	if r.Token == "" || len(r.DisplayClaims.Xui) == 0 || r.DisplayClaims.Xui[0].Uhs == "" {
		return nil, fmt.Errorf("%w: %s returned an incomplete ticket", transport.ErrServiceUnreachable, endpoint)
	}

	return &Ticket{
		Token:    r.Token,
		UserHash: r.DisplayClaims.Xui[0].Uhs,
		NotAfter: r.NotAfter,
	}, nil
}

// AuthenticateUser exchanges the identity provider RPS ticket for an XBL ticket
func (c *Client) AuthenticateUser(ctx context.Context, rpsTicket string) (*Ticket, error) {
	var response ticketResponse
	err := c.client.PostJSON(ctx, c.endpoints.UserAuthenticate, &xblRequest{
		RelyingParty: "http://auth.xboxlive.com",
		TokenType:    "JWT",
		Properties: xblProperties{
			AuthMethod: "RPS",
			SiteName:   "user.auth.xboxlive.com",
			RpsTicket:  rpsTicket,
		},
	}, &response)
	if err != nil {
		return nil, err
	}

	return response.ticket(c.endpoints.UserAuthenticate)
}

// Authorize exchanges the XBL ticket for an XSTS ticket of the game services relying party.
// A nonzero XErr is classified, the known codes have their own errors
func (c *Client) Authorize(ctx context.Context, xbl *Ticket) (*Ticket, error) {
	var response ticketResponse
	err := c.client.PostJSON(ctx, c.endpoints.XSTSAuthorize, &xstsRequest{
		RelyingParty: "rp://api.minecraftservices.com/",
		TokenType:    "JWT",
		Properties: xstsProperties{
			UserTokens: []string{xbl.Token},
			SandboxId:  "RETAIL",
		},
	}, &response)
	if response.XErr != 0 {
		return nil, classifyXErr(response.XErr, response.Message, response.Redirect)
	}

	if err != nil {
		return nil, err
	}

	return response.ticket(c.endpoints.XSTSAuthorize)
}
