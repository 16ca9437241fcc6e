package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
)

// refreshToken exchanges token's refresh token for a new access token
// under reg's client credentials.
func refreshToken(ctx context.Context, client OIDCClient, reg DeviceRegistration, token Token) (Token, error) {
	out, err := client.CreateToken(ctx, &ssooidc.CreateTokenInput{
		ClientId:     aws.String(reg.ClientID),
		ClientSecret: aws.String(reg.ClientSecret),
		GrantType:    aws.String("refresh_token"),
		RefreshToken: aws.String(token.RefreshToken),
	})
	if err != nil {
		return Token{}, fmt.Errorf("auth: refresh token: %w", err)
	}
	refreshed := Token{
		AccessToken:  aws.ToString(out.AccessToken),
		RefreshToken: token.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(out.ExpiresIn) * time.Second),
		Region:       token.Region,
		StartURL:     token.StartURL,
		Flow:         token.Flow,
		Scopes:       token.Scopes,
	}
	if out.RefreshToken != nil {
		refreshed.RefreshToken = aws.ToString(out.RefreshToken)
	}
	return refreshed, nil
}
