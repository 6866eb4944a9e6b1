package copr

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/eclipseo/copr/errors"
	"github.com/eclipseo/copr/internal/request"
)

// BuildProxy exposes the build operations of the api_3 surface. Every
// Build it returns is bound to the proxy as its status-fetching
// capability, so heterogeneous sets of builds from different clients can
// be waited on together.
type BuildProxy struct {
	sender *request.Sender
}

// ListOptions filters and paginates List results.
type ListOptions struct {
	Packagename string `url:"packagename,omitempty"`
	Status      string `url:"status,omitempty"`
	Limit       int    `url:"limit,omitempty"`
	Offset      int    `url:"offset,omitempty"`
	Order       string `url:"order,omitempty"`
}

type listParams struct {
	Ownername   string `url:"ownername"`
	Projectname string `url:"projectname"`
	ListOptions
}

type listResponse struct {
	Items []*Build `json:"items"`
}

// BuildOptions carries the optional submission parameters shared by the
// create operations.
type BuildOptions struct {
	Chroots        []string
	ProjectDirname string
	Background     bool
	// Timeout is the server-side build timeout in seconds (0 = frontend default).
	Timeout int64
}

// Get fetches a single build by id.
func (p *BuildProxy) Get(ctx context.Context, id int64) (*Build, error) {
	var build Build
	if err := p.sender.Get(ctx, fmt.Sprintf("/build/%d", id), nil, &build); err != nil {
		return nil, err
	}
	return p.bind(&build), nil
}

// FetchBuild implements StatusFetcher.
func (p *BuildProxy) FetchBuild(ctx context.Context, id int64) (*Build, error) {
	return p.Get(ctx, id)
}

// List returns the builds of a project, newest first by frontend default.
func (p *BuildProxy) List(ctx context.Context, ownername, projectname string, opts ListOptions) ([]*Build, error) {
	params := listParams{Ownername: ownername, Projectname: projectname, ListOptions: opts}
	var resp listResponse
	if err := p.sender.Get(ctx, "/build/list/", params, &resp); err != nil {
		return nil, err
	}
	for _, b := range resp.Items {
		p.bind(b)
	}
	return resp.Items, nil
}

// CreateFromURLs submits builds from source package URLs (one build per
// URL, returned as one Build when a single URL is given; the frontend
// groups multi-URL submissions under the first id).
func (p *BuildProxy) CreateFromURLs(ctx context.Context, ownername, projectname string, urls []string, opts BuildOptions) (*Build, error) {
	if len(urls) == 0 {
		return nil, errors.New(errors.KindUsage, "at least one source package URL is required")
	}
	form := p.submitForm(ownername, projectname, opts)
	form.Set("pkgs", strings.Join(urls, "\n"))

	var build Build
	if err := p.sender.PostForm(ctx, "/build/create/url", form, &build); err != nil {
		return nil, err
	}
	return p.bind(&build), nil
}

// CreateFromFile uploads a local source package (srpm) and submits a build
// from it.
func (p *BuildProxy) CreateFromFile(ctx context.Context, ownername, projectname, path string, opts BuildOptions) (*Build, error) {
	form := p.submitForm(ownername, projectname, opts)
	fields := make(map[string]string, len(form))
	for key := range form {
		fields[key] = form.Get(key)
	}

	var build Build
	if err := p.sender.PostMultipart(ctx, "/build/create/upload", fields, "pkgs", path, &build); err != nil {
		return nil, err
	}
	return p.bind(&build), nil
}

// Cancel asks the frontend to cancel a build. The returned snapshot
// reflects the state at cancellation time; cancellation is asynchronous,
// so the build may still take a round or two to reach "canceled".
func (p *BuildProxy) Cancel(ctx context.Context, id int64) (*Build, error) {
	var build Build
	if err := p.sender.Put(ctx, fmt.Sprintf("/build/cancel/%d", id), &build); err != nil {
		return nil, err
	}
	return p.bind(&build), nil
}

// Delete removes a finished build from its project.
func (p *BuildProxy) Delete(ctx context.Context, id int64) (*Build, error) {
	var build Build
	if err := p.sender.Delete(ctx, fmt.Sprintf("/build/delete/%d", id), &build); err != nil {
		return nil, err
	}
	return p.bind(&build), nil
}

func (p *BuildProxy) submitForm(ownername, projectname string, opts BuildOptions) url.Values {
	form := url.Values{}
	form.Set("ownername", ownername)
	form.Set("projectname", projectname)
	if opts.ProjectDirname != "" {
		form.Set("project_dirname", opts.ProjectDirname)
	}
	for _, chroot := range opts.Chroots {
		form.Add("chroots", chroot)
	}
	if opts.Background {
		form.Set("background", "true")
	}
	if opts.Timeout > 0 {
		form.Set("timeout", strconv.FormatInt(opts.Timeout, 10))
	}
	return form
}

func (p *BuildProxy) bind(b *Build) *Build {
	b.fetcher = p
	return b
}
