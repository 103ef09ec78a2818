// Package booksurf is the backend for the BookSurf university library.
//
// Accounts:
//   - Users sign up with a full name, email, university ID, and card. Email
//     and university ID are unique; a duplicate on either produces a field
//     specific message while signin failures stay deliberately generic.
//   - Sessions are stateless HS256 tokens carried in a cookie. SignUpHandler
//     and SignInHandler run behind a per-address rate limiter that redirects
//     offenders to /too-fast.
//
// Activity:
//   - ActivityTracker keeps users.last_activity_date equal to "today" at
//     calendar day granularity. Touches are scheduled after the response is
//     written, write at most once per user per day, and only ever move the
//     date forward.
//
// Engagement:
//   - Engagement drives the onboarding email sequence as a durable workflow
//     (see the workflow package): a welcome email, a three day pause, then a
//     periodic loop that classifies the user as active or non-active from
//     their last activity date and sends the matching email. The loop never
//     terminates on its own; progress survives restarts through the
//     orchestrator's checkpoint log.
package booksurf
