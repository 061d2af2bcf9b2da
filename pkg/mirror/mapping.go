package mirror

import (
	"github.com/newdoli/dolisync/pkg/gateway"
	"github.com/newdoli/dolisync/pkg/store"
)

func userFromRemote(r gateway.RemoteUser) store.User {
	return store.User{
		ID:          r.ID,
		Login:       r.Login,
		Firstname:   r.Firstname,
		Lastname:    r.Lastname,
		Email:       r.Email,
		Admin:       r.Admin,
		Active:      r.Active,
		GroupIDs:    r.GroupIDs,
		Permissions: r.Permissions,
	}
}

func groupFromRemote(r gateway.RemoteGroup) store.Group {
	return store.Group{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Permissions: r.Permissions,
	}
}

func thirdPartyFromRemote(r gateway.RemoteThirdParty) store.ThirdParty {
	return store.ThirdParty{
		ID:          r.ID,
		Name:        r.Name,
		NameAlias:   r.NameAlias,
		Address:     r.Address,
		Zip:         r.Zip,
		Town:        r.Town,
		State:       r.State,
		Country:     r.Country,
		Phone:       r.Phone,
		Email:       r.Email,
		Website:     r.Website,
		Client:      r.Client,
		Supplier:    r.Supplier,
		Prospect:    r.Prospect,
		Status:      r.Status,
		NotePublic:  r.NotePublic,
		NotePrivate: r.NotePrivate,
	}
}

func productFromRemote(r gateway.RemoteProduct) store.Product {
	return store.Product{
		ID:          r.ID,
		Ref:         r.Ref,
		Label:       r.Label,
		Description: r.Description,
		Type:        r.Type,
		Price:       r.Price,
		PriceTTC:    r.PriceTTC,
		Status:      r.Status,
		StatusLabel: r.StatusLabel,
		Category:    r.Category,
		Stock:       r.Stock,
		StockAlert:  r.StockAlert,
	}
}
