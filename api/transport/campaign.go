package transport

import (
	"time"

	"github.com/fastygo/groupbuy/domain"
)

// CampaignResponse is a campaign with its derived progress figures.
type CampaignResponse struct {
	domain.Campaign
	Progress domain.Progress `json:"progress"`
}

func NewCampaignResponse(c *domain.Campaign, now time.Time) CampaignResponse {
	return CampaignResponse{Campaign: *c, Progress: c.Progress(now)}
}

func NewCampaignList(campaigns []domain.Campaign, now time.Time) []CampaignResponse {
	out := make([]CampaignResponse, 0, len(campaigns))
	for i := range campaigns {
		out = append(out, NewCampaignResponse(&campaigns[i], now))
	}
	return out
}
