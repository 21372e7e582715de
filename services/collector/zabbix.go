package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// UnknownVendor marks hosts none of whose templates map to a known vendor.
const UnknownVendor = "Unknown"

// Host is a switch discovered through Zabbix.
type Host struct {
	ID        string
	Name      string
	IP        string
	Community string
	Vendor    string
}

// RPCError is a JSON-RPC error object returned by Zabbix.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *RPCError) Error() string {
	if e.Data == "" {
		return fmt.Sprintf("zabbix: %s (code %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("zabbix: %s: %s (code %d)", e.Message, e.Data, e.Code)
}

// ZabbixClient talks to the Zabbix JSON-RPC API.
type ZabbixClient struct {
	url        string
	token      string
	groupID    int
	bearerAuth bool
	vendors    map[string]string
	http       *http.Client
	nextID     atomic.Int64
}

// NewZabbixClient builds a client for cfg. vendors maps template ids to vendor names.
func NewZabbixClient(cfg ZabbixConfig, vendors map[string]string, client *http.Client) (*ZabbixClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("zabbix url is required")
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &ZabbixClient{
		url:        cfg.URL,
		token:      cfg.Token,
		groupID:    cfg.GroupID,
		bearerAuth: cfg.BearerAuth,
		vendors:    vendors,
		http:       client,
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	Auth    string `json:"auth,omitempty"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *ZabbixClient) call(ctx context.Context, method string, params, out any) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}
	if !c.bearerAuth {
		req.Auth = c.token
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json-rpc")
	if c.bearerAuth {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("%s: %w", method, decoded.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

type zabbixHost struct {
	HostID     string `json:"hostid"`
	Host       string `json:"host"`
	Interfaces []struct {
		IP      string `json:"ip"`
		Details struct {
			Community string `json:"community"`
		} `json:"details"`
	} `json:"interfaces"`
	ParentTemplates []struct {
		TemplateID string `json:"templateid"`
	} `json:"parentTemplates"`
}

type zabbixMacro struct {
	Macro string `json:"macro"`
	Value string `json:"value"`
}

// Hosts lists the configured group's hosts with their first interface, resolved SNMP
// community and vendor. Hosts without interfaces are omitted. A community macro that
// cannot be resolved is left as is so the caller can report it.
func (c *ZabbixClient) Hosts(ctx context.Context) ([]Host, error) {
	params := map[string]any{
		"groupids":              c.groupID,
		"output":                []string{"hostid", "host"},
		"selectInterfaces":      []string{"ip", "details"},
		"selectParentTemplates": []string{"templateid"},
	}

	var raw []zabbixHost
	if err := c.call(ctx, "host.get", params, &raw); err != nil {
		return nil, err
	}

	hosts := make([]Host, 0, len(raw))
	for _, h := range raw {
		if len(h.Interfaces) == 0 {
			continue
		}

		templates := make([]string, 0, len(h.ParentTemplates))
		for _, tpl := range h.ParentTemplates {
			templates = append(templates, tpl.TemplateID)
		}

		community := h.Interfaces[0].Details.Community
		if isMacro(community) {
			if value, err := c.ResolveMacro(ctx, h.HostID, templates, community); err == nil {
				community = value
			}
		}

		hosts = append(hosts, Host{
			ID:        h.HostID,
			Name:      h.Host,
			IP:        h.Interfaces[0].IP,
			Community: community,
			Vendor:    DetectVendor(templates, c.vendors),
		})
	}
	return hosts, nil
}

// ResolveMacro looks up a user macro the way Zabbix resolves it for a host: a macro on
// the host itself wins over one on its templates, which wins over a global macro.
func (c *ZabbixClient) ResolveMacro(ctx context.Context, hostID string, templateIDs []string, name string) (string, error) {
	scopes := []map[string]any{
		{"hostids": []string{hostID}},
	}
	if len(templateIDs) > 0 {
		scopes = append(scopes, map[string]any{"hostids": templateIDs})
	}
	scopes = append(scopes, map[string]any{"globalmacro": true})

	for _, params := range scopes {
		params["output"] = []string{"macro", "value"}
		params["filter"] = map[string]any{"macro": name}

		var macros []zabbixMacro
		if err := c.call(ctx, "usermacro.get", params, &macros); err != nil {
			return "", err
		}
		for _, m := range macros {
			if m.Macro == name && m.Value != "" {
				return m.Value, nil
			}
		}
	}
	return "", fmt.Errorf("macro %s not found for host %s", name, hostID)
}

// DetectVendor returns the vendor of the first template id present in vendors.
func DetectVendor(templateIDs []string, vendors map[string]string) string {
	for _, id := range templateIDs {
		if vendor, ok := vendors[id]; ok && vendor != "" {
			return vendor
		}
	}
	return UnknownVendor
}

func isMacro(value string) bool {
	return strings.HasPrefix(value, "{$") && strings.HasSuffix(value, "}")
}
