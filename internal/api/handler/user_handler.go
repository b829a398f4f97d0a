package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emailauth/emailauth/internal/api/metrics"
	"github.com/emailauth/emailauth/internal/api/middleware"
	"github.com/emailauth/emailauth/internal/core/domain"
	"github.com/emailauth/emailauth/internal/core/ports"
)

// UserHandler exposes account management endpoints.
type UserHandler struct {
	manager ports.UserManager
}

func NewUserHandler(manager ports.UserManager) *UserHandler {
	return &UserHandler{manager: manager}
}

// Me returns the authenticated account.
//
// @Summary      Current account
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// MyPermissions lists every permission the authenticated account holds.
//
// @Summary      Current account permissions
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  permissionsResponse
// @Failure      401  {object}  errorResponse
// @Router       /users/me/permissions [get]
func (h *UserHandler) MyPermissions(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	perms, err := h.manager.UserPermissions(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, permissionsResponse{Permissions: perms})
}

// MyModulePerms reports whether the authenticated account holds any
// permission in an app label.
//
// @Summary      Module permission check
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        app  path      string  true  "App label"
// @Success      200  {object}  modulePermsResponse
// @Failure      401  {object}  errorResponse
// @Router       /users/me/permissions/{app} [get]
func (h *UserHandler) MyModulePerms(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	app := c.Param("app")
	ok, err := h.manager.HasModulePerms(c.Request().Context(), user, app)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, modulePermsResponse{AppLabel: app, Allowed: ok})
}

// ChangePassword replaces the authenticated account's password after
// checking the current one.
//
// @Summary      Change own password
// @Tags         users
// @Accept       json
// @Security     BearerAuth
// @Param        body  body  changePasswordRequest  true  "Passwords"
// @Success      204
// @Failure      401  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /users/me/password [put]
func (h *UserHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	user, err := h.currentUser(c)
	if err != nil {
		return err
	}
	if !h.manager.CheckPassword(user, req.CurrentPassword) {
		return domain.ErrInvalidCredentials
	}
	if err := h.manager.SetPassword(c.Request().Context(), user.ID, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearPassword leaves an account with an unusable password, disabling
// password login for it.
//
// @Summary      Disable password login
// @Tags         users
// @Security     BearerAuth
// @Param        id  path  string  true  "Account id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /users/{id}/password [delete]
func (h *UserHandler) ClearPassword(c echo.Context) error {
	if err := h.manager.SetUnusablePassword(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Lookup finds an account by email.
//
// @Summary      Find account by email
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        email  query     string  true  "Email address"
// @Success      200    {object}  userResponse
// @Failure      400    {object}  errorResponse
// @Failure      404    {object}  errorResponse
// @Router       /users [get]
func (h *UserHandler) Lookup(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email query parameter is required")
	}
	user, err := h.manager.GetUser(c.Request().Context(), email)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrUserNotFound
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// Get returns an account by id.
//
// @Summary      Get account
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Account id"
// @Success      200  {object}  userResponse
// @Failure      404  {object}  errorResponse
// @Router       /users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.manager.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// CreateSuperuser creates an account with staff and superuser status.
//
// @Summary      Create superuser
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      registerRequest  true  "Account details"
// @Success      201   {object}  userResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /users/superusers [post]
func (h *UserHandler) CreateSuperuser(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	user, err := h.manager.CreateSuperuser(c.Request().Context(), ports.CreateUserInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return err
	}

	metrics.AccountsCreatedTotal.WithLabelValues("superuser").Inc()
	return c.JSON(http.StatusCreated, toUserResponse(user))
}

// SetActive activates or deactivates an account.
//
// @Summary      Set account active flag
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string            true  "Account id"
// @Param        body  body      setActiveRequest  true  "Active flag"
// @Success      200   {object}  userResponse
// @Failure      404   {object}  errorResponse
// @Router       /users/{id}/active [put]
func (h *UserHandler) SetActive(c echo.Context) error {
	var req setActiveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	user, err := h.manager.SetActive(c.Request().Context(), c.Param("id"), *req.Active)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// AddToGroup adds an account to a group.
//
// @Summary      Add account to group
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Account id"
// @Param        body  body      addToGroupRequest  true  "Group"
// @Success      200   {object}  userResponse
// @Failure      404   {object}  errorResponse
// @Router       /users/{id}/groups [post]
func (h *UserHandler) AddToGroup(c echo.Context) error {
	var req addToGroupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	user, err := h.manager.AddToGroup(c.Request().Context(), c.Param("id"), req.Group)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// GrantPermission grants a permission directly to an account.
//
// @Summary      Grant permission
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                  true  "Account id"
// @Param        body  body      grantPermissionRequest  true  "Permission"
// @Success      200   {object}  userResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /users/{id}/permissions [post]
func (h *UserHandler) GrantPermission(c echo.Context) error {
	var req grantPermissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	user, err := h.manager.GrantPermission(c.Request().Context(), c.Param("id"), req.Permission)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// SaveGroup creates a group or replaces its permissions.
//
// @Summary      Save group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        name  path      string            true  "Group name"
// @Param        body  body      saveGroupRequest  true  "Permissions"
// @Success      200   {object}  domain.Group
// @Failure      422   {object}  errorResponse
// @Router       /groups/{name} [put]
func (h *UserHandler) SaveGroup(c echo.Context) error {
	var req saveGroupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	group := &domain.Group{Name: c.Param("name"), Permissions: req.Permissions}
	if group.Permissions == nil {
		group.Permissions = []string{}
	}
	if err := h.manager.SaveGroup(c.Request().Context(), group); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, group)
}

// Email queues a message to an account's address.
//
// @Summary      Email an account
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string            true  "Account id"
// @Param        body  body      emailUserRequest  true  "Message"
// @Success      202   {object}  acceptedResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /users/{id}/email [post]
func (h *UserHandler) Email(c echo.Context) error {
	var req emailUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	if err := h.manager.EmailUser(c.Request().Context(), c.Param("id"), req.Subject, req.Message, req.From); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: "mail queued"})
}

// currentUser returns the account loaded by middleware.LoadAccount, falling
// back to a lookup of the token subject. A token that outlives the account's
// active status is refused.
func (h *UserHandler) currentUser(c echo.Context) (*domain.User, error) {
	if user := middleware.Account(c); user != nil {
		return user, nil
	}
	id, _ := c.Get(middleware.KeyUserID).(string)
	if id == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	user, err := h.manager.GetByID(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrInactiveUser
	}
	return user, nil
}
