package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"modelstudio/studio/modelgraph"
	"modelstudio/studio/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &loginInfo{Email: email, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(body io.Reader) *httpTestRequest {
	r.body = body
	return r
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	if r.login != nil {
		req.SetBasicAuth(r.login.Email, r.login.Password)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		if res.StatusCode == http.StatusForbidden {
			return ErrForbidden
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Put(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "PUT", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *client) signup(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/signup").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) login(login loginInfo) error {
	var res map[string]string
	err := c.Get("/user/login").Login(login.Email, login.Password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

func (c *client) addUser(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/create").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) deleteUser(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v", userId)).Do(nil)
}

func (c *client) promoteAdmin(userId string) error {
	return c.Post(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) demoteAdmin(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) listUsers() ([]services.UserInfo, error) {
	var res []services.UserInfo
	err := c.Get("/user/list").Do(&res)
	return res, err
}

func (c *client) userInfo() (services.UserInfo, error) {
	var res services.UserInfo
	err := c.Get("/user/info").Do(&res)
	return res, err
}

func (c *client) createProject(name string) (string, error) {
	body := map[string]string{"name": name}

	var res map[string]string
	err := c.Post("/project/create").Json(body).Do(&res)
	return res["project_id"], err
}

func (c *client) listProjects() ([]services.ProjectInfo, error) {
	var res []services.ProjectInfo
	err := c.Get("/project/list").Do(&res)
	return res, err
}

func (c *client) projectInfo(projectId string) (services.ProjectInfo, error) {
	var res services.ProjectInfo
	err := c.Get(fmt.Sprintf("/project/%v", projectId)).Do(&res)
	return res, err
}

func (c *client) updateProject(projectId string, update map[string]interface{}) error {
	return c.Put(fmt.Sprintf("/project/%v", projectId)).Json(update).Do(nil)
}

func (c *client) deleteProject(projectId string) error {
	return c.Delete(fmt.Sprintf("/project/%v", projectId)).Do(nil)
}

func (c *client) listMembers(projectId string) ([]services.MemberInfo, error) {
	var res []services.MemberInfo
	err := c.Get(fmt.Sprintf("/project/%v/members", projectId)).Do(&res)
	return res, err
}

func (c *client) addMember(projectId, userId, role string) error {
	return c.Post(fmt.Sprintf("/project/%v/members/%v", projectId, userId)).Json(map[string]string{"role": role}).Do(nil)
}

func (c *client) updateMemberRole(projectId, userId, role string) error {
	return c.Put(fmt.Sprintf("/project/%v/members/%v", projectId, userId)).Json(map[string]string{"role": role}).Do(nil)
}

func (c *client) removeMember(projectId, userId string) error {
	return c.Delete(fmt.Sprintf("/project/%v/members/%v", projectId, userId)).Do(nil)
}

func (c *client) createModel(projectId, name string) (string, error) {
	body := map[string]string{"name": name}

	var res map[string]string
	err := c.Post(fmt.Sprintf("/project/%v/model/create", projectId)).Json(body).Do(&res)
	return res["model_id"], err
}

func (c *client) listModels(projectId string) ([]services.DataModelInfo, error) {
	var res []services.DataModelInfo
	err := c.Get(fmt.Sprintf("/project/%v/model/list", projectId)).Do(&res)
	return res, err
}

func (c *client) getModel(projectId, modelId string) (services.DataModelContents, error) {
	var res services.DataModelContents
	err := c.Get(fmt.Sprintf("/project/%v/model/%v", projectId, modelId)).Do(&res)
	return res, err
}

func (c *client) deleteModel(projectId, modelId string) error {
	return c.Delete(fmt.Sprintf("/project/%v/model/%v", projectId, modelId)).Do(nil)
}

func (c *client) exportModel(projectId, modelId string) (modelgraph.SerializedModel, error) {
	var res modelgraph.SerializedModel
	err := c.Get(fmt.Sprintf("/project/%v/model/%v/export", projectId, modelId)).Do(&res)
	return res, err
}

func (c *client) importModel(projectId string, model modelgraph.SerializedModel) (modelgraph.ImportReport, error) {
	var res modelgraph.ImportReport
	err := c.Post(fmt.Sprintf("/project/%v/model/import", projectId)).Json(model).Do(&res)
	return res, err
}

func (c *client) createEntity(projectId, modelId string, body map[string]interface{}) (services.EntityInfo, error) {
	var res services.EntityInfo
	err := c.Post(fmt.Sprintf("/project/%v/model/%v/entity", projectId, modelId)).Json(body).Do(&res)
	return res, err
}

func (c *client) updateEntity(projectId, modelId, entityId string, update map[string]interface{}) error {
	return c.Put(fmt.Sprintf("/project/%v/model/%v/entity/%v", projectId, modelId, entityId)).Json(update).Do(nil)
}

func (c *client) deleteEntity(projectId, modelId, entityId string) error {
	return c.Delete(fmt.Sprintf("/project/%v/model/%v/entity/%v", projectId, modelId, entityId)).Do(nil)
}

type attributeCreateResult struct {
	Attribute         services.AttributeInfo     `json:"attribute"`
	Relationship      *services.RelationshipInfo `json:"relationship"`
	RelationshipError string                     `json:"relationship_error"`
}

func (c *client) createAttribute(projectId, modelId, entityId string, body map[string]interface{}) (attributeCreateResult, error) {
	var res attributeCreateResult
	err := c.Post(fmt.Sprintf("/project/%v/model/%v/entity/%v/attribute", projectId, modelId, entityId)).Json(body).Do(&res)
	return res, err
}

func (c *client) replaceAttributes(projectId, modelId, entityId string, attributes []map[string]interface{}) ([]services.AttributeInfo, error) {
	var res []services.AttributeInfo
	body := map[string]interface{}{"attributes": attributes}
	err := c.Put(fmt.Sprintf("/project/%v/model/%v/entity/%v/attributes", projectId, modelId, entityId)).Json(body).Do(&res)
	return res, err
}

func (c *client) updateAttribute(projectId, modelId, attributeId string, update map[string]interface{}) error {
	return c.Put(fmt.Sprintf("/project/%v/model/%v/attribute/%v", projectId, modelId, attributeId)).Json(update).Do(nil)
}

func (c *client) deleteAttribute(projectId, modelId, attributeId string) (bool, error) {
	var res map[string]bool
	err := c.Delete(fmt.Sprintf("/project/%v/model/%v/attribute/%v", projectId, modelId, attributeId)).Do(&res)
	return res["removed_relationship"], err
}

func (c *client) createRelationship(projectId, modelId string, body map[string]interface{}) (services.RelationshipInfo, error) {
	var res services.RelationshipInfo
	err := c.Post(fmt.Sprintf("/project/%v/model/%v/relationship", projectId, modelId)).Json(body).Do(&res)
	return res, err
}

func (c *client) deleteRelationship(projectId, modelId, relationshipId string) error {
	return c.Delete(fmt.Sprintf("/project/%v/model/%v/relationship/%v", projectId, modelId, relationshipId)).Do(nil)
}

func (c *client) createReferential(projectId, modelId, name string) (services.ReferentialInfo, error) {
	var res services.ReferentialInfo
	err := c.Post(fmt.Sprintf("/project/%v/model/%v/referential", projectId, modelId)).Json(map[string]string{"name": name}).Do(&res)
	return res, err
}

func (c *client) deleteReferential(projectId, modelId, referentialId string) error {
	return c.Delete(fmt.Sprintf("/project/%v/model/%v/referential/%v", projectId, modelId, referentialId)).Do(nil)
}

func (c *client) assignReferential(projectId, modelId, referentialId, entityId string) error {
	return c.Post(fmt.Sprintf("/project/%v/model/%v/referential/%v/entity/%v", projectId, modelId, referentialId, entityId)).Do(nil)
}

func (c *client) unassignReferential(projectId, modelId, referentialId, entityId string) error {
	return c.Delete(fmt.Sprintf("/project/%v/model/%v/referential/%v/entity/%v", projectId, modelId, referentialId, entityId)).Do(nil)
}

func (c *client) createRule(projectId, modelId string, body map[string]interface{}) (services.RuleInfo, error) {
	var res services.RuleInfo
	err := c.Post(fmt.Sprintf("/project/%v/model/%v/rule", projectId, modelId)).Json(body).Do(&res)
	return res, err
}

func (c *client) listRules(projectId, modelId string) ([]services.RuleListEntry, error) {
	var res []services.RuleListEntry
	err := c.Get(fmt.Sprintf("/project/%v/model/%v/rule/list", projectId, modelId)).Do(&res)
	return res, err
}

func (c *client) updateRule(projectId, modelId, ruleId string, update map[string]interface{}) error {
	return c.Put(fmt.Sprintf("/project/%v/model/%v/rule/%v", projectId, modelId, ruleId)).Json(update).Do(nil)
}

func (c *client) deleteRule(projectId, modelId, ruleId string) error {
	return c.Delete(fmt.Sprintf("/project/%v/model/%v/rule/%v", projectId, modelId, ruleId)).Do(nil)
}

func (c *client) heartbeat(projectId string) error {
	return c.Post(fmt.Sprintf("/project/%v/presence/heartbeat", projectId)).Do(nil)
}

func (c *client) goOffline(projectId string) error {
	return c.Delete(fmt.Sprintf("/project/%v/presence", projectId)).Do(nil)
}

func (c *client) onlineMembers(projectId string) ([]services.PresenceInfo, error) {
	var res []services.PresenceInfo
	err := c.Get(fmt.Sprintf("/project/%v/presence", projectId)).Do(&res)
	return res, err
}

func (c *client) mustUserId() uuid.UUID {
	return uuid.MustParse(c.userId)
}
