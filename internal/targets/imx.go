package targets

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/upload-runner/internal/engine"
	"github.com/JakeFAU/upload-runner/internal/protocol"
)

type imx struct {
	exec     Executor
	endpoint string
	scraper  *Scraper
	logger   *zap.Logger
}

// Upload posts through the API, then prefers the thumbnail BBCode published
// on the viewer page since the API thumbnail URL is not always served.
func (i *imx) Upload(ctx context.Context, up Upload) (engine.Result, error) {
	res, err := i.exec.Execute(ctx, engine.Request{
		JobID:  up.JobID,
		Target: "imx.to",
		File:   up.File,
		Spec:   ImxSpec(i.endpoint, up.Job.Creds, up.Job.Config),
	})
	if err != nil || i.scraper == nil {
		return res, err
	}

	viewer, thumb, err := i.scraper.ThumbnailBBCode(ctx, res.URL)
	if err != nil || thumb == "" {
		i.logger.Warn("imx bbcode scrape failed, keeping api urls",
			zap.String("job_id", up.JobID),
			zap.String("url", res.URL),
			zap.Error(err),
		)
		return res, nil
	}
	i.logger.Debug("replaced imx api thumbnail",
		zap.String("job_id", up.JobID),
		zap.String("old_thumb", res.Thumb),
		zap.String("new_thumb", thumb),
	)
	return engine.Result{URL: viewer, Thumb: thumb}, nil
}

func (i *imx) Verify(_ context.Context, creds map[string]string) (bool, string) {
	if creds["api_key"] != "" {
		return true, "API Key present"
	}
	return false, "Login failed"
}

// ImxSpec describes an imx.to API upload. The thumbnail size and format come
// from the UI labels in config imx_thumb_id and imx_format_id.
func ImxSpec(endpoint string, creds, config map[string]string) *protocol.RequestSpec {
	size := imxSizeID(config["imx_thumb_id"])
	fields := map[string]protocol.MultipartField{
		"image":                {Type: protocol.FieldFile},
		"format":               textField("json"),
		"adult":                textField("1"),
		"upload_type":          textField("file"),
		"simple_upload":        textField("Upload"),
		"thumbnail_size":       textField(size),
		"thumb_size_container": textField(size),
		"thumbnail_format":     textField(imxFormatID(config["imx_format_id"])),
	}
	if gid := config["gallery_id"]; gid != "" {
		fields["gallery_id"] = textField(gid)
	}
	return &protocol.RequestSpec{
		URL:             endpoint,
		Method:          "POST",
		Headers:         map[string]string{"X-API-KEY": creds["api_key"]},
		MultipartFields: fields,
		ResponseParser: protocol.ResponseParserSpec{
			Type:         protocol.ShapeJSON,
			StatusPath:   "status",
			SuccessValue: "success",
			URLPath:      "data.image_url",
			ThumbPath:    "data.thumbnail_url",
		},
	}
}

func imxSizeID(label string) string {
	switch label {
	case "100":
		return "1"
	case "150":
		return "6"
	case "250":
		return "3"
	case "300":
		return "4"
	default: // 180
		return "2"
	}
}

func imxFormatID(label string) string {
	switch label {
	case "Fixed Height":
		return "4"
	case "Proportional":
		return "2"
	case "Square":
		return "3"
	default: // Fixed Width
		return "1"
	}
}
