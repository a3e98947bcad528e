package sumo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ligustah/contentbackup/internal/content"
)

// Document is a raw JSON document returned by the API.
type Document []byte

// ChildCount returns the length of the top-level "children" array, or 0
// when the document has none.
func (d Document) ChildCount() int {
	var v struct {
		Children []json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(d, &v); err != nil {
		return 0
	}
	return len(v.Children)
}

// item is the wire shape of a folder or content item.
type item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ItemType string `json:"itemType"`
	Children []item `json:"children"`
}

func (it item) node() content.Node {
	n := content.Node{
		ID:   it.ID,
		Name: it.Name,
		Kind: content.ParseKind(it.ItemType),
	}
	for _, c := range it.Children {
		n.Children = append(n.Children, c.node())
	}
	return n
}

type jobStatus struct {
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Folder lists one level of a folder: the folder itself with its immediate
// children, without their content.
func (c *Client) Folder(ctx context.Context, id string) (content.Node, error) {
	data, err := c.get(ctx, "/v2/content/folders/"+url.PathEscape(id), nil)
	if err != nil {
		return content.Node{}, err
	}
	var it item
	if err := decode(data, &it); err != nil {
		return content.Node{}, err
	}
	if it.ItemType == "" {
		it.ItemType = "Folder"
	}
	return it.node(), nil
}

// ExportContent exports a content item, or a folder with all of its
// descendants inlined, as one document. Large folders can fail here.
func (c *Client) ExportContent(ctx context.Context, id string) (Document, error) {
	base := "/v2/content/" + url.PathEscape(id) + "/export"
	data, err := c.runJob(ctx, http.MethodPost, base, base)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", id, err)
	}
	return Document(data), nil
}

// GlobalFolder returns the top-level folders of every user.
func (c *Client) GlobalFolder(ctx context.Context) ([]content.Node, error) {
	base := "/v2/content/folders/global"
	data, err := c.runJob(ctx, http.MethodGet, base, base)
	if err != nil {
		return nil, fmt.Errorf("global folder: %w", err)
	}
	var v struct {
		Data []item `json:"data"`
	}
	if err := decode(data, &v); err != nil {
		return nil, err
	}
	nodes := make([]content.Node, 0, len(v.Data))
	for _, it := range v.Data {
		nodes = append(nodes, it.node())
	}
	return nodes, nil
}

// AdminRecommended returns the admin recommended folder.
func (c *Client) AdminRecommended(ctx context.Context) (content.Node, error) {
	base := "/v2/content/folders/adminRecommended"
	data, err := c.runJob(ctx, http.MethodGet, base, base)
	if err != nil {
		return content.Node{}, fmt.Errorf("admin recommended folder: %w", err)
	}
	var it item
	if err := decode(data, &it); err != nil {
		return content.Node{}, err
	}
	if it.ItemType == "" {
		it.ItemType = "Folder"
	}
	return it.node(), nil
}

// runJob starts an asynchronous job, polls its status at a flat interval
// and fetches the result. jobBase is the prefix of the status and result
// endpoints: <jobBase>/<job>/status and <jobBase>/<job>/result.
func (c *Client) runJob(ctx context.Context, method, start, jobBase string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.JobTimeout)
	defer cancel()

	var body []byte
	if method == http.MethodPost {
		body = []byte("{}")
	}
	data, err := c.do(ctx, method, start, nil, body)
	if err != nil {
		return nil, err
	}
	var job struct {
		ID string `json:"id"`
	}
	if err := decode(data, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, fmt.Errorf("%w: no job id returned by %s", ErrJobFailed, start)
	}

	jobPath := jobBase + "/" + url.PathEscape(job.ID)
	for {
		data, err := c.get(ctx, jobPath+"/status", nil)
		if err != nil {
			return nil, err
		}
		var st jobStatus
		if err := decode(data, &st); err != nil {
			return nil, err
		}

		switch st.Status {
		case "Success":
			return c.get(ctx, jobPath+"/result", nil)
		case "Failed":
			if st.Error != nil {
				return nil, fmt.Errorf("%w: %s: %s", ErrJobFailed, st.Error.Code, st.Error.Message)
			}
			return nil, ErrJobFailed
		}

		if err := sleep(ctx, c.opts.PollInterval); err != nil {
			return nil, err
		}
	}
}

// Objects fetches every page of a global, non-hierarchical object set
// (connections, roles, partitions, ...) and merges them into one document
// of the form {"data": [...]}.
func (c *Client) Objects(ctx context.Context, kind string) (Document, error) {
	var all []json.RawMessage
	token := ""
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.opts.PageSize))
		if token != "" {
			q.Set("token", token)
		}
		data, err := c.get(ctx, "/v1/"+kind, q)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		var page struct {
			Data []json.RawMessage `json:"data"`
			Next string            `json:"next"`
		}
		if err := decode(data, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if page.Next == "" || page.Next == token {
			break
		}
		token = page.Next
	}
	if all == nil {
		all = []json.RawMessage{}
	}
	doc, err := json.Marshal(map[string]any{"data": all})
	if err != nil {
		return nil, err
	}
	return Document(doc), nil
}

// MonitorsRoot returns the ID of the root monitor folder.
func (c *Client) MonitorsRoot(ctx context.Context) (string, error) {
	data, err := c.get(ctx, "/v1/monitors/root", nil)
	if err != nil {
		return "", fmt.Errorf("monitors root: %w", err)
	}
	var v struct {
		ID string `json:"id"`
	}
	if err := decode(data, &v); err != nil {
		return "", err
	}
	return v.ID, nil
}

// ExportMonitors exports the monitor tree rooted at id.
func (c *Client) ExportMonitors(ctx context.Context, id string) (Document, error) {
	data, err := c.get(ctx, "/v1/monitors/"+url.PathEscape(id)+"/export", nil)
	if err != nil {
		return nil, fmt.Errorf("export monitors: %w", err)
	}
	return Document(data), nil
}
