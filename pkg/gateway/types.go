package gateway

// RemoteUser is a backend account as returned by the remote API, with
// the rights payload already validated into a typed mapping.
type RemoteUser struct {
	ID          uint                `json:"id"`
	Login       string              `json:"login"`
	Firstname   string              `json:"firstname"`
	Lastname    string              `json:"lastname"`
	Email       string              `json:"email"`
	Admin       bool                `json:"admin"`
	Active      bool                `json:"active"`
	GroupIDs    []uint              `json:"groups,omitempty"`
	Permissions []string            `json:"permissions,omitempty"`
	Rights      map[string][]string `json:"rights,omitempty"`
}

// RemoteGroup is a permission group as returned by the remote API.
type RemoteGroup struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// RemoteThirdParty is a third party as returned by the remote API.
type RemoteThirdParty struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	NameAlias   string `json:"name_alias,omitempty"`
	Address     string `json:"address,omitempty"`
	Zip         string `json:"zip,omitempty"`
	Town        string `json:"town,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Website     string `json:"website,omitempty"`
	Client      bool   `json:"client"`
	Supplier    bool   `json:"supplier"`
	Prospect    bool   `json:"prospect"`
	Status      string `json:"status,omitempty"`
	NotePublic  string `json:"note_public,omitempty"`
	NotePrivate string `json:"note_private,omitempty"`
}

// RemoteProduct is a catalogue entry as returned by the remote API.
type RemoteProduct struct {
	ID          uint    `json:"id"`
	Ref         string  `json:"ref"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	Type        string  `json:"type,omitempty"`
	Price       float64 `json:"price"`
	PriceTTC    float64 `json:"price_ttc"`
	Status      int     `json:"status"`
	StatusLabel string  `json:"status_label,omitempty"`
	Category    string  `json:"category,omitempty"`
	Stock       float64 `json:"stock"`
	StockAlert  float64 `json:"stock_alert"`
}

// rawUser mirrors the wire shape of a user. The rights field is
// structurally untyped on the wire and is validated here, at the API
// boundary, rather than trusted deeper into the session layer.
type rawUser struct {
	ID          uint           `json:"id"`
	Login       string         `json:"login"`
	Firstname   string         `json:"firstname"`
	Lastname    string         `json:"lastname"`
	Email       string         `json:"email"`
	Admin       bool           `json:"admin"`
	Active      bool           `json:"active"`
	GroupIDs    []uint         `json:"groups,omitempty"`
	Permissions []string       `json:"permissions,omitempty"`
	Rights      map[string]any `json:"rights,omitempty"`
}

// normalize converts the wire user into its validated form, keeping
// only rights entries that are lists of strings.
func (u *rawUser) normalize() *RemoteUser {
	return &RemoteUser{
		ID:          u.ID,
		Login:       u.Login,
		Firstname:   u.Firstname,
		Lastname:    u.Lastname,
		Email:       u.Email,
		Admin:       u.Admin,
		Active:      u.Active,
		GroupIDs:    u.GroupIDs,
		Permissions: u.Permissions,
		Rights:      normalizeRights(u.Rights),
	}
}

// normalizeRights validates the untyped rights payload into a
// module -> actions mapping, dropping anything that is not a list of
// strings.
func normalizeRights(raw map[string]any) map[string][]string {
	if len(raw) == 0 {
		return nil
	}

	rights := make(map[string][]string, len(raw))

	for module, v := range raw {
		list, ok := v.([]any)
		if !ok {
			continue
		}

		actions := make([]string, 0, len(list))

		for _, item := range list {
			if s, ok := item.(string); ok {
				actions = append(actions, s)
			}
		}

		if len(actions) > 0 {
			rights[module] = actions
		}
	}

	if len(rights) == 0 {
		return nil
	}

	return rights
}
