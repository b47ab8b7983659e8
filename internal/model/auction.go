// Package model contains the structs shared between the auction client, the
// transformer, the renderer and the delivery adapters.
package model

// AuctionStatus is the upstream lifecycle of an auction.
type AuctionStatus string

const (
	StatusComingSoon AuctionStatus = "COMING_SOON"
	StatusInProgress AuctionStatus = "IN_PROGRESS"
	StatusCompleted  AuctionStatus = "COMPLETED"
	StatusCancelled  AuctionStatus = "CANCELLED"
)

// Eligible reports whether lots are fetched and a document produced for
// auctions in this status.
func (s AuctionStatus) Eligible() bool {
	return s == StatusComingSoon || s == StatusInProgress
}

// Token is the bearer token returned by the upstream token exchange.
type Token struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

// Auction is read-only upstream metadata for one timed event. The
// timestamps are kept as the upstream sent them; nothing here parses them.
type Auction struct {
	AuctionID int64         `json:"auctionId"`
	Name      string        `json:"name"`
	Status    AuctionStatus `json:"status"`
	CreatedAt string        `json:"createdAt"`
	UpdatedAt string        `json:"updatedAt"`
}

// Pagination is the paging envelope the upstream attaches to list responses.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// Lot is one vehicle listing. Only a few fields are projected downstream; the
// rest are decoded so the record round-trips through logs and the CLI.
type Lot struct {
	ID                    int64            `json:"id"`
	LotURL                string           `json:"lotUrl"`
	AuctionID             int64            `json:"auctionId"`
	Status                AuctionStatus    `json:"status"`
	StartDate             string           `json:"startDate"`
	EndDate               string           `json:"endDate"`
	ZipCode               string           `json:"zipCode"`
	State                 string           `json:"state"`
	City                  string           `json:"city"`
	CurrentPrice          float64          `json:"currentPrice"`
	VIN                   string           `json:"vin"`
	Year                  int              `json:"year"`
	Make                  string           `json:"make"`
	Model                 string           `json:"model"`
	Color                 string           `json:"color"`
	OdometerReading       *int64           `json:"odometerReading"`
	OdometerReadingType   string           `json:"odometerReadingType"`
	ActualCashValue       float64          `json:"actualCashValue"`
	EstimatedCostOfRepair float64          `json:"estimatedCostOfRepair"`
	TitleBrands           []string         `json:"titleBrands"`
	TransmissionStyle     string           `json:"transmissionStyle"`
	DriveType             string           `json:"driveType"`
	FuelType              string           `json:"fuelType"`
	AirbagsDeployed       string           `json:"airbagsDeployed"`
	StartCode             string           `json:"startCode"`
	HasKeys               string           `json:"hasKeys"`
	DamageType            string           `json:"damageType"`
	PrimaryDamage         string           `json:"primaryDamage"`
	SecondaryDamage       string           `json:"secondaryDamage"`
	LotImagesDetails      LotImagesDetails `json:"lotImagesDetails"`
	VideoURL              string           `json:"videoURL,omitempty"`
}

// LotImagesDetails groups the images attached to a lot.
type LotImagesDetails struct {
	ImgCount  int        `json:"imgCount"`
	LotImages []LotImage `json:"lotImages"`
}

// LotImage is one image slot; each slot carries several renditions.
type LotImage struct {
	Sequence int         `json:"sequence"`
	Category string      `json:"category"`
	Link     []ImageLink `json:"link"`
}

// ImageLink is a single rendition of a lot image.
type ImageLink struct {
	URL         string `json:"url"`
	IsThumbNail bool   `json:"isThumbNail"`
	IsHDImage   bool   `json:"isHdImage"`
}

// FormattedLot is the projection of a Lot used for rendering and workflow delivery.
type FormattedLot struct {
	ID              int64   `json:"id"`
	Make            string  `json:"make"`
	Model           string  `json:"model"`
	Year            int     `json:"year"`
	City            string  `json:"city"`
	State           string  `json:"state"`
	OdometerReading *int64  `json:"odometerReading"`
	StartCode       string  `json:"startCode"`
	HasKeys         string  `json:"hasKeys"`
	ThumbnailURL    *string `json:"thumbnailUrl"`
}

// AuctionPayload is the presentation-ready data for one auction. Lots is
// serialized as "data" so saved payload files match the upstream JSON shape.
type AuctionPayload struct {
	AuctionID int64          `json:"auctionId,omitempty"`
	Lots      []FormattedLot `json:"data"`
	StartDate string         `json:"startDate"`
	EndDate   string         `json:"endDate"`
}

// UploadResult describes one delivered document.
type UploadResult struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	SharedLink string `json:"downloadUrl"`
}
