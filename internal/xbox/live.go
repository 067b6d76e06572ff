package xbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"ely.by/mcauth/internal/transport"
)

const (
	LauncherClientID = "00000000402b5328"
	launcherScope    = "service::user.auth.xboxlive.com::MBI_SSL"
	desktopRedirect  = "https://login.live.com/oauth20_desktop.srf"
)

var (
	ppftPattern    = regexp.MustCompile(`sFTTag:[ ]?'.*value="(.*)"/>'`)
	urlPostPattern = regexp.MustCompile(`urlPost:[ ]?'([^']+)'`)
	codePattern    = regexp.MustCompile(`[?|&]code=([\w.-]+)`)
)

var DefaultLiveAuthorizeURL = "https://login.live.com/oauth20_authorize.srf?" + url.Values{
	"client_id":     {LauncherClientID},
	"redirect_uri":  {desktopRedirect},
	"scope":         {launcherScope},
	"display":       {"touch"},
	"response_type": {"code"},
	"locale":        {"en"},
}.Encode()

// LiveLogin submits account credentials through the live.com sign in page the way
// the game launcher's embedded browser does and returns the authorization code
type LiveLogin struct {
	http         *http.Client
	authorizeURL string
}

func NewLiveLogin(httpClient *http.Client) *LiveLogin {
	return &LiveLogin{
		http:         httpClient,
		authorizeURL: DefaultLiveAuthorizeURL,
	}
}

func (l *LiveLogin) AuthorizationCode(ctx context.Context, username string, password string) (string, error) {
	page, err := l.fetchLoginPage(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{
		"login":    {username},
		"loginfmt": {username},
		"passwd":   {password},
		"PPFT":     {page.ppft},
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, page.urlPost, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: login form target %q: %w", transport.ErrServiceUnreachable, page.urlPost, err)
	}

	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, cookie := range page.cookies {
		request.AddCookie(cookie)
	}

	response, err := l.http.Do(request)
	if err != nil {
		return "", requestFailure(ctx, page.urlPost, err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 1<<20))

	finalURL := page.urlPost
	if response.Request != nil && response.Request.URL != nil {
		finalURL = response.Request.URL.String()
	}

	// The sign in page is rendered again when it doesn't accept the credentials
	if response.StatusCode != http.StatusOK || finalURL == page.urlPost {
		return "", fmt.Errorf("%w: invalid username and/or password", transport.ErrInvalidCredentials)
	}

	decodedURL, err := url.QueryUnescape(finalURL)
	if err != nil {
		decodedURL = finalURL
	}

	match := codePattern.FindStringSubmatch(decodedURL)
	if match == nil {
		return "", fmt.Errorf("%w: could not parse response of %q", transport.ErrServiceUnreachable, page.urlPost)
	}

	return match[1], nil
}

type loginPage struct {
	ppft    string
	urlPost string
	cookies []*http.Cookie
}

func (l *LiveLogin) fetchLoginPage(ctx context.Context) (*loginPage, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, l.authorizeURL, nil)
	if err != nil {
		return nil, err
	}

	response, err := l.http.Do(request)
	if err != nil {
		return nil, requestFailure(ctx, l.authorizeURL, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 4<<20))
	if err != nil {
		return nil, requestFailure(ctx, l.authorizeURL, err)
	}

	ppft := ppftPattern.FindSubmatch(body)
	urlPost := urlPostPattern.FindSubmatch(body)
	if ppft == nil || urlPost == nil || len(ppft[1]) == 0 || len(urlPost[1]) == 0 {
		return nil, fmt.Errorf("%w: could not parse response of %q", transport.ErrServiceUnreachable, l.authorizeURL)
	}

	return &loginPage{
		ppft:    string(ppft[1]),
		urlPost: string(urlPost[1]),
		cookies: response.Cookies(),
	}, nil
}

func requestFailure(ctx context.Context, target string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}

	return fmt.Errorf("%w: %s: %w", transport.ErrServiceUnreachable, target, err)
}
