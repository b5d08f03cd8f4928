package addrbook

// Route is a route-table entry as the host application defines it. The
// guard consumes only RequiresAuth and Path.
type Route struct {
	Path         string
	RequiresAuth bool
	Title        string
}

// Decision is the guard's verdict on a route transition: either allow,
// or redirect somewhere (optionally carrying the originally requested
// path as a return target).
type Decision struct {
	Allow      bool
	RedirectTo string
	ReturnPath string
}

// Guard gates route transitions on authentication state. Evaluate is
// total: every input yields exactly one of the two outcomes, with no
// side effect beyond the "please log in" notification.
type Guard struct {
	session   *SessionStore
	notifier  Notifier
	loginPath string
	homePath  string
}

// Evaluate decides a transition to route.
func (g *Guard) Evaluate(route Route) Decision {
	loggedIn := g.session.IsLoggedIn()

	if route.RequiresAuth && !loggedIn {
		if g.notifier != nil {
			g.notifier.Notify(NotifyWarning, "please log in first")
		}
		return Decision{
			RedirectTo: g.loginPath,
			ReturnPath: route.Path,
		}
	}

	// A logged-in visit to the login page goes home instead.
	if !route.RequiresAuth && route.Path == g.loginPath && loggedIn {
		return Decision{RedirectTo: g.homePath}
	}

	return Decision{Allow: true}
}
