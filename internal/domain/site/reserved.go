package site

// Platform routes and common words that can never be a store slug.
var reserved = map[string]struct{}{
	"about": {}, "account": {}, "admin": {}, "api": {}, "app": {}, "apps": {},
	"assets": {}, "auth": {}, "billing": {}, "blog": {}, "cart": {}, "casting": {},
	"cdn": {}, "checkout": {}, "contact": {}, "dashboard": {}, "dev": {}, "docs": {},
	"help": {}, "home": {}, "login": {}, "logout": {}, "mail": {}, "marketing": {},
	"metrics": {}, "new": {}, "null": {}, "onboarding": {}, "platform": {}, "pricing": {},
	"privacy": {}, "register": {}, "root": {}, "settings": {}, "shop": {}, "signin": {},
	"signup": {}, "static": {}, "status": {}, "store": {}, "stores": {}, "support": {},
	"system": {}, "terms": {}, "test": {}, "tryon": {}, "undefined": {}, "webhook": {},
	"webhooks": {}, "www": {},
}
