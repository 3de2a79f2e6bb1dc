package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) writeResponse(resp *services.APIResponse, pretty bool) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}
	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, pretty)
	}
	return r.writePlain("%s\n", resp.Body)
}

// APIGet makes a direct GET request to the REST API.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, "path")
	if err != nil {
		return err
	}

	r.logger.Info("GET request", "path", path)

	resp, err := r.api.Get(ctx, path)
	if err != nil {
		return err
	}
	return r.writeResponse(resp, !cmd.Bool("json"))
}

// APIPost makes a direct POST request to the REST API.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, "path")
	if err != nil {
		return err
	}
	data := cmd.String("data")
	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}

	r.logger.Info("POST request", "path", path)

	if !json.Valid([]byte(data)) {
		return fmt.Errorf("%w: data is not valid JSON", shared.ErrInvalidInput)
	}

	resp, err := r.api.Post(ctx, path, []byte(data))
	if err != nil {
		return err
	}
	return r.writeResponse(resp, true)
}

// APIDump resyncs every channel and prints the whole mirror snapshot.
func (r *Runner) APIDump(ctx context.Context, cmd *cli.Command) error {
	h, err := r.openHub()
	if err != nil {
		return err
	}

	r.logger.Info("dumping mirror state")
	if _, err := h.ResyncAll(ctx, nil); err != nil {
		r.logger.Warn("some channels failed to sync", "error", err)
	}

	data, err := shared.MarshalJSON(h.Read(), cmd.Bool("pretty"))
	if err != nil {
		return fmt.Errorf("failed to marshal dump: %w", err)
	}
	return r.writeOutput(cmd.String("output"), append(data, '\n'))
}
