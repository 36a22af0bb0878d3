// Package rtc implements an OSLC client for IBM Rational Team Concert.
package rtc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sort"
	"strconv"
	"time"

	"github.com/beevik/etree"
	backoff "github.com/cenkalti/backoff/v4"
	cache "github.com/patrickmn/go-cache"
	"github.com/synctools/tracksync/logger"
	"go.uber.org/zap"
)

// OSLC work item type of a story.
const storyWorkItemType = "com.ibm.team.apt.workItemType.story"

const (
	cacheKeyActions    = "actions"
	cacheKeyComplexity = "complexity"
)

// Options configures the connection to an RTC server.
type Options struct {
	Hostname    string
	Project     string
	Username    string
	Token       string
	FileAgainst string
	WorkflowID  string
	Timeout     time.Duration
}

// Client talks to one RTC server. The session cookie obtained at login is
// kept in the client's cookie jar; action identifiers and the complexity
// enumeration are cached because they only change with the project setup.
type Client struct {
	httpClient  *http.Client
	hostname    string
	projectName string
	projectID   string
	username    string
	token       string
	fileAgainst string
	workflowID  string
	cache       *cache.Cache
}

// NewClient connects and authenticates against the RTC server and resolves
// the configured project area.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	client := &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
			Transport: &http.Transport{
				// rtc servers commonly run with self-signed certificates
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		hostname:    trimTrailingSlash(opts.Hostname),
		projectName: opts.Project,
		username:    opts.Username,
		token:       opts.Token,
		fileAgainst: opts.FileAgainst,
		workflowID:  opts.WorkflowID,
		cache:       cache.New(30*time.Minute, 10*time.Minute),
	}
	if err := client.login(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func trimTrailingSlash(hostname string) string {
	for len(hostname) > 0 && hostname[len(hostname)-1] == '/' {
		hostname = hostname[:len(hostname)-1]
	}
	return hostname
}

// ProjectID returns the UUID of the configured project area.
func (c *Client) ProjectID() string {
	return c.projectID
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader, oslcHeader bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+c.token)
	if oslcHeader {
		req.Header.Set("OSLC-Core-version", "2.0")
	}
	return req, nil
}

// get runs a GET with retries and returns the response body. Transient
// failures are retried with exponential backoff.
func (c *Client) get(ctx context.Context, url string, accept string, oslcHeader bool) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := c.newRequest(ctx, http.MethodGet, url, nil, oslcHeader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		res, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("request to '%s' failed with status %d", url, res.StatusCode)
		}
		body, err = io.ReadAll(res.Body)
		return err
	}
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}, oslcHeader bool) error {
	body, err := c.get(ctx, url, "application/json", oslcHeader)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) getXML(ctx context.Context, url string) (*etree.Document, error) {
	body, err := c.get(ctx, url, "application/xml", true)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("could not parse xml response of '%s': %w", url, err)
	}
	return doc, nil
}

// login authenticates the session and resolves the project area id.
func (c *Client) login(ctx context.Context) error {
	url := fmt.Sprintf("%s/ccm/authenticated/identity", c.hostname)
	if _, err := c.get(ctx, url, "", true); err != nil {
		return fmt.Errorf("authentication to rtc server %s failed, please verify the credential: %w", c.hostname, err)
	}
	return c.resolveProjectID(ctx)
}

func (c *Client) resolveProjectID(ctx context.Context) error {
	url := fmt.Sprintf("%s/ccm/process/project-areas", c.hostname)
	doc, err := c.getXML(ctx, url)
	if err != nil {
		return err
	}
	for _, area := range doc.FindElements("//jp06:project-area") {
		if area.SelectAttrValue("jp06:name", "") != c.projectName {
			continue
		}
		urlElement := area.SelectElement("jp06:url")
		if urlElement == nil {
			continue
		}
		c.projectID = ResourceRef{Resource: urlElement.Text()}.ID()
		logger.Debug("resolved rtc project area",
			zap.String("project", c.projectName), zap.String("id", c.projectID))
		return nil
	}
	return fmt.Errorf("could not find rtc project with name '%s'", c.projectName)
}

// ActionIdentifiers maps the workflow action titles to the identifiers the
// _action query parameter expects.
func (c *Client) ActionIdentifiers(ctx context.Context) (map[string]string, error) {
	if cached, ok := c.cache.Get(cacheKeyActions); ok {
		return cached.(map[string]string), nil
	}
	url := fmt.Sprintf("%s/ccm/oslc/workflows/%s/actions/%s", c.hostname, c.projectID, c.workflowID)
	var actions []struct {
		Title      string `json:"dc:title"`
		Identifier string `json:"dc:identifier"`
	}
	// this endpoint rejects the OSLC core version header
	if err := c.getJSON(ctx, url, &actions, false); err != nil {
		return nil, fmt.Errorf("failed to get action definitions of workflow '%s': %w", c.workflowID, err)
	}
	identifiers := make(map[string]string, len(actions))
	for _, action := range actions {
		identifiers[action.Title] = action.Identifier
	}
	c.cache.Set(cacheKeyActions, identifiers, cache.DefaultExpiration)
	return identifiers, nil
}

func (c *Client) complexities(ctx context.Context) (map[string]string, error) {
	if cached, ok := c.cache.Get(cacheKeyComplexity); ok {
		return cached.(map[string]string), nil
	}
	url := fmt.Sprintf("%s/ccm/oslc/enumerations/%s/complexity", c.hostname, c.projectID)
	var response struct {
		Results []struct {
			Identifier string `json:"dcterms:identifier"`
			About      string `json:"rdf:about"`
		} `json:"oslc:results"`
	}
	if err := c.getJSON(ctx, url, &response, true); err != nil {
		return nil, fmt.Errorf("failed to get complexity enumeration: %w", err)
	}
	complexities := make(map[string]string, len(response.Results))
	for _, result := range response.Results {
		complexities[result.Identifier] = result.About
	}
	c.cache.Set(cacheKeyComplexity, complexities, cache.DefaultExpiration)
	return complexities, nil
}

// ComplexityLink resolves a story point value to the enumeration literal URL
// the complexity attribute links to.
func (c *Client) ComplexityLink(ctx context.Context, storyPoint int) (string, error) {
	complexities, err := c.complexities(ctx)
	if err != nil {
		return "", err
	}
	link, ok := complexities[strconv.Itoa(storyPoint)]
	if !ok {
		defined := make([]string, 0, len(complexities))
		for identifier := range complexities {
			defined = append(defined, identifier)
		}
		sort.Strings(defined)
		return "", fmt.Errorf("story point value '%d' is not valid, it should be in %v", storyPoint, defined)
	}
	return link, nil
}

// FiledAgainst resolves a category name to its URL, following OSLC paging.
func (c *Client) FiledAgainst(ctx context.Context, name string) (string, error) {
	url := fmt.Sprintf("%s/ccm/oslc/categories?oslc.where=rtc_cm:projectArea=%q&oslc.select=dc:title,rdfs:member,rtc_cm:hierarchicalName",
		c.hostname, c.projectID)
	for url != "" {
		var response struct {
			Results []struct {
				Title            string `json:"dc:title"`
				HierarchicalName string `json:"rtc_cm:hierarchicalName"`
				About            string `json:"rdf:about"`
			} `json:"oslc:results"`
			ResponseInfo struct {
				NextPage string `json:"oslc:nextPage"`
			} `json:"oslc:responseInfo"`
		}
		if err := c.getJSON(ctx, url, &response, true); err != nil {
			return "", fmt.Errorf("failed to get filedAgainst '%s': %w", name, err)
		}
		for _, result := range response.Results {
			if result.Title == name || result.HierarchicalName == name {
				return result.About, nil
			}
		}
		url = response.ResponseInfo.NextPage
	}
	return "", fmt.Errorf("could not find filedAgainst '%s'", name)
}

// GetInfoFromURL fetches a linked resource and returns one of its fields.
func (c *Client) GetInfoFromURL(ctx context.Context, url string, info string) (string, error) {
	var data map[string]interface{}
	if err := c.getJSON(ctx, url, &data, true); err != nil {
		return "", err
	}
	value, ok := data[info]
	if !ok {
		return "", fmt.Errorf("could not get '%s' from response of url '%s'", info, url)
	}
	return fmt.Sprintf("%v", value), nil
}

func (c *Client) workItemURL(id string) string {
	return fmt.Sprintf("%s/ccm/oslc/workitems/%s", c.hostname, id)
}

// GetWorkItem fetches a work item by id.
func (c *Client) GetWorkItem(ctx context.Context, id string) (*WorkItem, error) {
	var workItem WorkItem
	if err := c.getJSON(ctx, c.workItemURL(id), &workItem, true); err != nil {
		return nil, fmt.Errorf("failed to retrieve work item %s: %w", id, err)
	}
	return &workItem, nil
}

// UpdateWorkItem fetches the work item XML, mutates the requested attributes
// in place and PUTs the document back.
func (c *Client) UpdateWorkItem(ctx context.Context, id string, fields Fields) error {
	url := c.workItemURL(id)
	doc, err := c.getXML(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to get work item %s for update: %w", id, err)
	}
	if fields.Title != nil {
		if err := setElementText(doc, "//dcterms:title", *fields.Title); err != nil {
			return err
		}
	}
	if fields.Description != nil {
		if err := setElementText(doc, "//dcterms:description", *fields.Description); err != nil {
			return err
		}
	}
	if fields.Labels != nil {
		if err := setElementText(doc, "//dcterms:subject", tagList(*fields.Labels)); err != nil {
			return err
		}
	}
	if fields.StoryPoint != nil {
		link, err := c.ComplexityLink(ctx, *fields.StoryPoint)
		if err != nil {
			return err
		}
		complexity := doc.FindElement("//rtc_ext:com.ibm.team.apt.attribute.complexity")
		if complexity == nil {
			return fmt.Errorf("work item %s carries no complexity attribute", id)
		}
		complexity.RemoveAttr("rdf:resource")
		complexity.CreateAttr("rdf:resource", link)
	}
	payload, err := doc.WriteToBytes()
	if err != nil {
		return err
	}
	return c.putWorkItem(ctx, url, payload, id)
}

func setElementText(doc *etree.Document, path string, text string) error {
	element := doc.FindElement(path)
	if element == nil {
		return fmt.Errorf("work item carries no '%s' attribute", path)
	}
	for _, child := range element.ChildElements() {
		element.RemoveChild(child)
	}
	element.SetText(text)
	return nil
}

func (c *Client) putWorkItem(ctx context.Context, url string, payload []byte, id string) error {
	req, err := c.newRequest(ctx, http.MethodPut, url, bytes.NewReader(payload), true)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/xml")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		return fmt.Errorf("failed to update work item %s: status %d", id, res.StatusCode)
	}
	return nil
}

// ExecuteAction fires one workflow action on a work item. The work item XML
// is fetched and PUT back unchanged with the action identifier as query
// parameter.
func (c *Client) ExecuteAction(ctx context.Context, id string, action string) error {
	url := c.workItemURL(id)
	body, err := c.get(ctx, url, "application/xml", true)
	if err != nil {
		return fmt.Errorf("could not find work item %s: %w", id, err)
	}
	identifiers, err := c.ActionIdentifiers(ctx)
	if err != nil {
		return err
	}
	actionID, ok := identifiers[action]
	if !ok {
		return fmt.Errorf("could not find action '%s' in workflow '%s'", action, c.workflowID)
	}
	logger.Debug("executing rtc workflow action",
		zap.String("id", id), zap.String("action", action))
	return c.putWorkItem(ctx, fmt.Sprintf("%s?_action=%s", url, actionID), body, id)
}

// CreateWorkItem creates a story work item and returns its id.
func (c *Client) CreateWorkItem(ctx context.Context, draft *Draft) (string, error) {
	fileAgainst := draft.FileAgainst
	if fileAgainst == "" {
		fileAgainst = c.fileAgainst
	}
	if fileAgainst == "" {
		return "", fmt.Errorf("fileAgainst is required to create an rtc work item")
	}
	filedAgainstURL, err := c.FiledAgainst(ctx, fileAgainst)
	if err != nil {
		return "", err
	}
	complexityLink, err := c.ComplexityLink(ctx, draft.StoryPoint)
	if err != nil {
		return "", err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	request := doc.CreateElement("oslc_cm:ChangeRequest")
	request.CreateAttr("xmlns:rdf", "http://www.w3.org/1999/02/22-rdf-syntax-ns#")
	request.CreateAttr("xmlns:dcterms", "http://purl.org/dc/terms/")
	request.CreateAttr("xmlns:oslc_cm", "http://open-services.net/ns/cm#")
	request.CreateAttr("xmlns:rtc_cm", "http://jazz.net/xmlns/prod/jazz/rtc/cm/1.0/")
	request.CreateAttr("xmlns:rtc_ext", "http://jazz.net/xmlns/prod/jazz/rtc/ext/1.0/")
	request.CreateElement("dcterms:title").SetText(draft.Title)
	request.CreateElement("dcterms:description").SetText(draft.Description)
	request.CreateElement("rtc_cm:filedAgainst").CreateAttr("rdf:resource", filedAgainstURL)
	request.CreateElement("rtc_ext:com.ibm.team.apt.attribute.complexity").CreateAttr("rdf:resource", complexityLink)
	if draft.Assignee != "" {
		contributor := fmt.Sprintf("%s/jts/users/%s", c.hostname, draft.Assignee)
		request.CreateElement("dcterms:contributor").CreateAttr("rdf:resource", contributor)
	}
	if len(draft.Labels) > 0 {
		request.CreateElement("dcterms:subject").SetText(tagList(draft.Labels))
	}
	payload, err := doc.WriteToBytes()
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/ccm/oslc/contexts/%s/workitems/%s", c.hostname, c.projectID, storyWorkItemType)
	req, err := c.newRequest(ctx, http.MethodPost, url, bytes.NewReader(payload), true)
	if err != nil {
		return "", err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("failed to create rtc work item: status %d, %s", res.StatusCode, string(body))
	}
	var created WorkItem
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		return "", err
	}
	return created.Identifier.String(), nil
}
