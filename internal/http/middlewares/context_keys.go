package middlewares

// Keys stored on the gin context. The identity itself travels on the
// request context (see identity.WithIdentity) so services never touch gin.
const (
	CtxRequestID = "request_id"
	CtxUserID    = "auth.userID"
	CtxRole      = "auth.role"
	CtxDefectID  = "defect_id"
)
