// Command lambda serves the auction list route from AWS Lambda behind an
// API Gateway HTTP API.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/dharsanguruparan/auctionlist/internal/app"
	"github.com/dharsanguruparan/auctionlist/internal/config"
	"github.com/dharsanguruparan/auctionlist/internal/logger"
	"github.com/dharsanguruparan/auctionlist/internal/server"
)

func main() {
	lambda.Start(newHandler(context.Background()))
}

// newHandler builds the app once per container. A configuration error is
// reported on every invocation as a 500 instead of crashing the container.
func newHandler(ctx context.Context) server.LambdaFunc {
	cfg, err := config.Load(os.Getenv("AUCTIONLIST_CONFIG"))
	if err != nil {
		return failing(err)
	}
	zlog, err := logger.New(cfg.Env)
	if err != nil {
		return failing(err)
	}
	a, err := app.Build(ctx, cfg, zlog, app.Options{})
	if err != nil {
		zlog.Errorw("init app", "error", err)
		return failing(err)
	}
	return server.Lambda(a.Server().Handler())
}

func failing(err error) server.LambdaFunc {
	log.Printf("auctionlist: %v", err)
	return func(_ context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		if req.RequestContext.HTTP.Method != "" && req.RequestContext.HTTP.Method != http.MethodGet {
			return events.APIGatewayV2HTTPResponse{
				StatusCode: http.StatusMethodNotAllowed,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       `{"error":"Method not allowed"}`,
			}, nil
		}
		body, _ := json.Marshal(map[string]any{"success": false, "error": err.Error()})
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       string(body),
		}, nil
	}
}
