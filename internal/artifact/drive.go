package artifact

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	confirmField = regexp.MustCompile(`name="confirm"\s+value="([^"]+)"`)
	uuidField    = regexp.MustCompile(`name="uuid"\s+value="([^"]+)"`)
	confirmQuery = regexp.MustCompile(`confirm=([0-9A-Za-z_\-]+)`)
)

// FetchDrive downloads a publicly shared Google Drive file. Large files are
// answered with a warning page first; the confirm token from its cookie or
// form is echoed back in a second request.
func (f *Fetcher) FetchDrive(ctx context.Context, fileID string) ([]byte, error) {
	params := map[string]string{
		"export": "download",
		"id":     fileID,
	}

	resp, err := f.rest.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(f.driveURL)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body := resp.Body()
	if needsConfirm(body) {
		token, uuid := confirmToken(resp.Cookies(), body)
		if token == "" {
			log.Warn().Str("file_id", fileID).Int("status", resp.StatusCode()).Msg("drive warning page carries no confirm token")
			return accept(resp)
		}

		params["confirm"] = token
		if uuid != "" {
			params["uuid"] = uuid
		}
		log.Info().Str("file_id", fileID).Msg("drive requested download confirmation, retrying with token")

		resp, err = f.rest.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(f.driveURL)
		if err != nil {
			return nil, fmt.Errorf("confirm request failed: %w", err)
		}
	}

	return accept(resp)
}

func needsConfirm(body []byte) bool {
	lower := bytes.ToLower(body)
	return bytes.Contains(lower, []byte("download_warning")) ||
		bytes.Contains(lower, []byte("quota exceeded")) ||
		(LooksLikeMarkup(body) && confirmField.Match(body))
}

// confirmToken prefers a download_warning cookie, then the confirm field of
// the warning form, then a confirm query parameter in a link.
func confirmToken(cookies []*http.Cookie, body []byte) (token, uuid string) {
	for _, c := range cookies {
		if strings.HasPrefix(c.Name, "download_warning") {
			token = c.Value
		}
	}
	if m := uuidField.FindSubmatch(body); m != nil {
		uuid = string(m[1])
	}
	if token != "" {
		return token, uuid
	}
	if m := confirmField.FindSubmatch(body); m != nil {
		return string(m[1]), uuid
	}
	if m := confirmQuery.FindSubmatch(body); m != nil {
		return string(m[1]), uuid
	}
	return "", uuid
}
