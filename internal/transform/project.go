// Package transform reshapes upstream lots into the payload rendered per auction.
package transform

import "github.com/dharsanguruparan/auctionlist/internal/model"

// Project maps the lots of one auction into an AuctionPayload. It performs no
// I/O; the start and end dates of the first lot stand for the whole auction.
func Project(auctionID int64, lots []model.Lot) model.AuctionPayload {
	payload := model.AuctionPayload{
		AuctionID: auctionID,
		Lots:      make([]model.FormattedLot, 0, len(lots)),
	}
	for _, lot := range lots {
		payload.Lots = append(payload.Lots, formatLot(lot))
	}
	if len(lots) > 0 {
		payload.StartDate = lots[0].StartDate
		payload.EndDate = lots[0].EndDate
	}
	return payload
}

func formatLot(lot model.Lot) model.FormattedLot {
	return model.FormattedLot{
		ID:              lot.ID,
		Make:            lot.Make,
		Model:           lot.Model,
		Year:            lot.Year,
		City:            lot.City,
		State:           lot.State,
		OdometerReading: copyInt(lot.OdometerReading),
		StartCode:       lot.StartCode,
		HasKeys:         lot.HasKeys,
		ThumbnailURL:    thumbnail(lot),
	}
}

// thumbnail is the first rendition of the first image, if there is one.
func thumbnail(lot model.Lot) *string {
	images := lot.LotImagesDetails.LotImages
	if len(images) == 0 || len(images[0].Link) == 0 || images[0].Link[0].URL == "" {
		return nil
	}
	url := images[0].Link[0].URL
	return &url
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
