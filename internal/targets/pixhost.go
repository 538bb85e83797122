package targets

import (
	"context"

	"github.com/JakeFAU/upload-runner/internal/engine"
	"github.com/JakeFAU/upload-runner/internal/protocol"
)

type pixhost struct {
	exec     Executor
	endpoint string
}

func (p *pixhost) Upload(ctx context.Context, up Upload) (engine.Result, error) {
	return p.exec.Execute(ctx, engine.Request{
		JobID:  up.JobID,
		Target: "pixhost.to",
		File:   up.File,
		Spec:   PixhostSpec(p.endpoint, up.Job.Config),
	})
}

// PixhostSpec describes a pixhost.to image upload. Config keys pix_content and
// pix_thumb are sent as given; pix_gallery_hash attaches the image to a gallery.
func PixhostSpec(endpoint string, config map[string]string) *protocol.RequestSpec {
	fields := map[string]protocol.MultipartField{
		"img":          {Type: protocol.FieldFile},
		"content_type": textField(config["pix_content"]),
		"max_th_size":  textField(config["pix_thumb"]),
	}
	if hash := config["pix_gallery_hash"]; hash != "" {
		fields["gallery_hash"] = textField(hash)
	}
	return &protocol.RequestSpec{
		URL:             endpoint,
		Method:          "POST",
		MultipartFields: fields,
		ResponseParser: protocol.ResponseParserSpec{
			Type:      protocol.ShapeJSON,
			URLPath:   "show_url",
			ThumbPath: "th_url",
			ErrorPath: "error_msg",
		},
	}
}
