package media

import "github.com/cppla/radiocms/models"

// collectionRoles lists the roles allowed to manage each collection.
var collectionRoles = map[models.Collection][]string{
	models.CollectionAds:   {models.RoleAdmin},
	models.CollectionMusic: {models.RoleAdmin},
	models.CollectionVoice: {models.RoleAdmin, models.RoleAnnouncer},
}

// ParseCollection validates a collection name taken from a route.
func ParseCollection(s string) (models.Collection, error) {
	c := models.Collection(s)
	if _, ok := collectionRoles[c]; !ok {
		return "", validationf("unknown collection %q", s)
	}
	return c, nil
}

// CanManage reports whether p holds a role that manages collection c.
func CanManage(p models.Principal, c models.Collection) bool {
	return p.HasAnyRole(collectionRoles[c]...)
}

// Roles returns the roles that gate collection c.
func Roles(c models.Collection) []string {
	return collectionRoles[c]
}
