package cognito

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Decentr-net/agora/internal/auth"
	"github.com/Decentr-net/agora/internal/entities"
)

type api struct {
	user   *cognitoidentityprovider.GetUserOutput
	err    error
	tokens []string
}

func (a *api) GetUser(_ context.Context, params *cognitoidentityprovider.GetUserInput,
	_ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GetUserOutput, error) {
	a.tokens = append(a.tokens, aws.ToString(params.AccessToken))
	return a.user, a.err
}

func (a *api) GlobalSignOut(_ context.Context, params *cognitoidentityprovider.GlobalSignOutInput,
	_ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GlobalSignOutOutput, error) {
	a.tokens = append(a.tokens, aws.ToString(params.AccessToken))
	return &cognitoidentityprovider.GlobalSignOutOutput{}, a.err
}

func (a *api) DescribeUserPool(_ context.Context, _ *cognitoidentityprovider.DescribeUserPoolInput,
	_ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.DescribeUserPoolOutput, error) {
	return &cognitoidentityprovider.DescribeUserPoolOutput{}, a.err
}

func attr(name, value string) types.AttributeType {
	return types.AttributeType{Name: aws.String(name), Value: aws.String(value)}
}

func TestAuthenticator_Authenticate(t *testing.T) {
	a := &api{user: &cognitoidentityprovider.GetUserOutput{
		Username: aws.String("john"),
		UserAttributes: []types.AttributeType{
			attr("sub", "6c1e1b9c"),
			attr("email", "john@example.com"),
			attr("picture", "https://cdn/john.png"),
		},
	}}

	u, err := NewWithAPI(a, "").Authenticate(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, &entities.User{
		ID:       "6c1e1b9c",
		Name:     "john",
		Email:    "john@example.com",
		PhotoURL: "https://cdn/john.png",
	}, u)
	assert.Equal(t, []string{"token"}, a.tokens)
}

func TestAuthenticator_Authenticate_Unauthorized(t *testing.T) {
	_, err := NewWithAPI(&api{}, "").Authenticate(context.Background(), "")
	require.ErrorIs(t, err, auth.ErrUnauthorized)

	a := &api{err: &types.NotAuthorizedException{Message: aws.String("Access Token has expired")}}
	_, err = NewWithAPI(a, "").Authenticate(context.Background(), "token")
	require.ErrorIs(t, err, auth.ErrUnauthorized)

	a = &api{err: errors.New("connection reset")}
	_, err = NewWithAPI(a, "").Authenticate(context.Background(), "token")
	require.Error(t, err)
	require.False(t, errors.Is(err, auth.ErrUnauthorized))
}

func TestAuthenticator_SignOut(t *testing.T) {
	a := &api{}
	require.NoError(t, NewWithAPI(a, "").SignOut(context.Background(), "token"))
	assert.Equal(t, []string{"token"}, a.tokens)

	a.err = &types.UserNotFoundException{}
	require.ErrorIs(t, NewWithAPI(a, "").SignOut(context.Background(), "token"), auth.ErrUnauthorized)
}

func TestAuthenticator_Ping(t *testing.T) {
	a := &api{err: errors.New("access denied")}

	require.NoError(t, NewWithAPI(a, "").Ping(context.Background()))
	require.Error(t, NewWithAPI(a, "pool").Ping(context.Background()))
}
