package sfapi

// APIVersion is one entry from the version discovery endpoint.
type APIVersion struct {
	Label   string `json:"label"`
	URL     string `json:"url"`
	Version string `json:"version"`
}

// Limit is one org limit from the limits endpoint.
type Limit struct {
	Max       int `json:"Max"`
	Remaining int `json:"Remaining"`
}

// UserInfo identifies the authenticated user, from the OpenID userinfo
// endpoint.
type UserInfo struct {
	UserID            string `json:"user_id"`
	OrganizationID    string `json:"organization_id"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	Email             string `json:"email"`
}

// OrgInfo is the result of the connection probe.
type OrgInfo struct {
	ID   string
	Name string
}

// organizationQuery is the shape of a SOQL query response over Organization.
type organizationQuery struct {
	TotalSize int  `json:"totalSize"`
	Done      bool `json:"done"`
	Records   []struct {
		ID   string `json:"Id"`
		Name string `json:"Name"`
	} `json:"records"`
}
