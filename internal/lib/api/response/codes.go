package response

// Numeric error codes carried in the "code" field of error responses.
const (
	CodeUserNotFound               = 1001
	CodeUserAlreadyExists          = 1002
	CodeIncorrectPassword          = 1003
	CodeEmailAndPasswordAreRequire = 1004
	CodeEmailIsNotRequire          = 1005

	CodeUnauthorized       = 2001
	CodeDontHavePermission = 2002

	CodeRoleNotFound = 3001

	CodeValidateError = 4001

	CodeServerError = 5001

	CodeInvalidRefreshToken = 6001
	CodeRefreshTokenIsNull  = 6002
	CodeRefreshTokenExpired = 6003

	CodeSentEmailFail         = 7001
	CodeEmailIsNotVerified    = 7002
	CodeInvalidEmailToken     = 7003
	CodeEmailTokenNotFound    = 7004
	CodeEmailTokenExpired     = 7005
	CodeEmailHasBeenVerified  = 7006
	CodeInvalidResetPassToken = 7007

	CodeCateNotFound    = 9000
	CodeCateNameIsExist = 9001

	CodeErrorFormat = 10000

	CodePostNotFound    = 11000
	CodeUpdatePostError = 11001
	CodeDeletePostError = 11002

	CodeTooManyRequests = 12001
)
