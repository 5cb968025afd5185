package mail

import "fmt"

// VerificationMessage builds the account verification email. The link embeds
// the one-time token and is valid until the token expires.
func VerificationMessage(to, baseURL, token string) Message {
	return Message{
		To:      to,
		Subject: "Verify your Caseline account",
		Body: fmt.Sprintf(
			"Welcome to Caseline.\n\n"+
				"Confirm your email address by opening the link below:\n\n"+
				"%s/verify-email?token=%s\n\n"+
				"The link is valid for 24 hours. If you did not create an account, ignore this message.\n",
			baseURL, token),
	}
}

// PasswordResetMessage builds the password reset email.
func PasswordResetMessage(to, baseURL, token string) Message {
	return Message{
		To:      to,
		Subject: "Reset your Caseline password",
		Body: fmt.Sprintf(
			"A password reset was requested for your account.\n\n"+
				"Set a new password by opening the link below:\n\n"+
				"%s/reset-password?token=%s\n\n"+
				"The link is valid for 30 minutes. If you did not request a reset, ignore this message.\n",
			baseURL, token),
	}
}

// EmailChangeMessage builds the confirmation email sent to a new address
// before it replaces the current one.
func EmailChangeMessage(to, baseURL, token string) Message {
	return Message{
		To:      to,
		Subject: "Confirm your new email address",
		Body: fmt.Sprintf(
			"A request was made to use this address for a Caseline account.\n\n"+
				"Confirm the change by opening the link below:\n\n"+
				"%s/confirm-email?token=%s\n\n"+
				"The link is valid for 30 minutes. If you did not request this change, ignore this message.\n",
			baseURL, token),
	}
}

// InviteMessage builds the group invitation email.
func InviteMessage(to, baseURL, groupName, token string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("You have been invited to %s on Caseline", groupName),
		Body: fmt.Sprintf(
			"You have been invited to join the group %q on Caseline.\n\n"+
				"Accept the invitation by opening the link below:\n\n"+
				"%s/invitations/accept?token=%s\n\n"+
				"The invitation is valid for 7 days.\n",
			groupName, baseURL, token),
	}
}
