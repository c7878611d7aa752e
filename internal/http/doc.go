// Package http exposes the taskboard services as a JSON API.
//
// Every route except GET /healthz, POST /auth/token and POST /users requires an
// `Authorization: Bearer <token>` header; POST /users accepts an optional one so that
// already authenticated callers can be turned away.
//
//   - POST /auth/token: issues a token. Body is JSON {"username","password"} or an
//     OAuth2 password form. Response: {"access_token","token_type","expires_at"}.
//   - POST /auth/logout: revokes the token of the current request.
//   - /users: registration, profile and administrator account management
//     exchanging the `userDTO` payload defined in user_handler.go.
//   - /teams: team registry and membership exchanging `teamDTO`.
//   - /tasks: task workflow (create, claim, complete, manager patch) exchanging
//     `taskDTO`; comments and evaluations hang off /tasks/{id}.
//   - GET /evaluations?start=YYYY-MM-DD&end=YYYY-MM-DD&user_id=: evaluation report
//     with the average grade.
//   - /meetings: meeting scheduling with the one hour conflict rule.
//   - GET /calendar/today, GET /calendar/month: the caller's tasks and meetings.
//
// Errors are returned as {"error_code","message","errors"} with the status derived
// from the application error kind. Request/response DTOs live alongside their
// respective handlers so tests and documentation share the same ground truth.
package http
